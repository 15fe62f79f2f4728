package memdb

import (
	"context"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
)

type adminRepository struct {
	db *DB
}

var _ admin.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdministratorRepository(db *DB) admin.Repository {
	return &adminRepository{db: db}
}

func (repo *adminRepository) EmailExists(_ context.Context, email string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, adm := range repo.db.administrators {
		if adm.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (repo *adminRepository) CreateAdministrator(_ context.Context, adm admin.Administrator, _ ...core.DBExecutor) (admin.Administrator, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	adm.ID = newID()
	repo.db.administrators[adm.ID] = adm
	return adm, nil
}

func (repo *adminRepository) GetAdministrator(_ context.Context, filter admin.GetFilter, _ ...core.DBExecutor) (admin.Administrator, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if adm, ok := repo.db.administrators[filter.ID]; ok {
			return adm, nil
		}
		return admin.Administrator{}, admin.ErrNotFound
	}
	if filter.Email != "" {
		for _, adm := range repo.db.administrators {
			if adm.Email == filter.Email {
				return adm, nil
			}
		}
	}
	return admin.Administrator{}, admin.ErrNotFound
}

func (repo *adminRepository) QueryAdministrators(_ context.Context, filter admin.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]admin.Administrator, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	adms := make([]admin.Administrator, 0, len(repo.db.administrators))
	for _, adm := range repo.db.administrators {
		if filter.Search != "" && !containsFold(adm.Name, filter.Search) && !containsFold(adm.Email, filter.Search) {
			continue
		}
		if filter.IsActive != nil && adm.IsActive != *filter.IsActive {
			continue
		}
		adms = append(adms, adm)
	}
	sortBy(len(adms), func(i, j int) { adms[i], adms[j] = adms[j], adms[i] }, ordering, map[string]func(i, j int) bool{
		"name":       func(i, j int) bool { return adms[i].Name < adms[j].Name },
		"email":      func(i, j int) bool { return adms[i].Email < adms[j].Email },
		"created_at": func(i, j int) bool { return adms[i].CreatedAt.Before(adms[j].CreatedAt) },
	}, "name")
	return adms, nil
}

func (repo *adminRepository) UpdateAdministrator(_ context.Context, adm admin.Administrator, _ ...core.DBExecutor) (admin.Administrator, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.administrators[adm.ID]; !ok {
		return admin.Administrator{}, admin.ErrNotFound
	}
	repo.db.administrators[adm.ID] = adm
	return adm, nil
}
