package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
)

var adminColumns = []string{"id", "name", "email", "password_hash", "is_super_admin", "is_active", "last_login", "created_at", "updated_at"}

type administratorRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	IsSuperAdmin bool      `db:"is_super_admin"`
	IsActive     bool      `db:"is_active"`
	LastLogin    null.Time `db:"last_login"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r administratorRow) values() []interface{} {
	return []interface{}{r.ID, r.Name, r.Email, r.PasswordHash, r.IsSuperAdmin, r.IsActive, r.LastLogin, r.CreatedAt, r.UpdatedAt}
}

type adminRepository struct {
	db *sqlx.DB
}

var _ admin.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdministratorRepository(db *sqlx.DB) admin.Repository {
	return &adminRepository{db: db}
}

func (repo adminRepository) toRow(adm admin.Administrator) administratorRow {
	return administratorRow{
		ID:           adm.ID,
		Name:         adm.Name,
		Email:        adm.Email,
		PasswordHash: adm.PasswordHash,
		IsSuperAdmin: adm.IsSuperAdmin,
		IsActive:     adm.IsActive,
		LastLogin:    adm.LastLogin,
		CreatedAt:    adm.CreatedAt.UTC(),
		UpdatedAt:    adm.UpdatedAt.UTC(),
	}
}

func (repo adminRepository) fromRow(r administratorRow) admin.Administrator {
	return admin.Administrator{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsSuperAdmin: r.IsSuperAdmin,
		IsActive:     r.IsActive,
		LastLogin:    r.LastLogin,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (repo adminRepository) EmailExists(ctx context.Context, email string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &exists,
		"SELECT EXISTS (SELECT 1 FROM administrators WHERE email = $1)", email)
	if err != nil {
		return false, errors.Wrap(err, "checking administrator email")
	}
	return exists, nil
}

func (repo adminRepository) CreateAdministrator(ctx context.Context, adm admin.Administrator, exec ...core.DBExecutor) (admin.Administrator, error) {
	adm.ID = uuid.New().String()
	var r administratorRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r,
		insertQuery("administrators", adminColumns, 1), repo.toRow(adm).values()...)
	if err != nil {
		return admin.Administrator{}, errors.Wrap(err, "inserting administrator")
	}
	return repo.fromRow(r), nil
}

func (repo adminRepository) GetAdministrator(ctx context.Context, filter admin.GetFilter, exec ...core.DBExecutor) (admin.Administrator, error) {
	var (
		r   administratorRow
		err error
	)
	ext := getExec(repo.db, exec)

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return admin.Administrator{}, admin.ErrNotFound
		}
		err = sqlx.GetContext(ctx, ext, &r, "SELECT * FROM administrators WHERE id = $1", filter.ID)
	case filter.Email != "":
		err = sqlx.GetContext(ctx, ext, &r, "SELECT * FROM administrators WHERE email = $1", filter.Email)
	default:
		return admin.Administrator{}, admin.ErrNotFound
	}
	if err != nil {
		return admin.Administrator{}, trapNoRowsErr(err, admin.ErrNotFound, "finding administrator")
	}
	return repo.fromRow(r), nil
}

func (repo adminRepository) QueryAdministrators(ctx context.Context, filter admin.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]admin.Administrator, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR email ILIKE ?)", val, val)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	ext := getExec(repo.db, exec)
	query := "SELECT * FROM administrators" + w.String() + orderBy(ordering, map[string]string{
		"name":       "name",
		"email":      "email",
		"created_at": "created_at",
	}, "name ASC")
	query, args, err := bind(ext, query, w.args)
	if err != nil {
		return nil, err
	}

	var rows []administratorRow
	if err = sqlx.SelectContext(ctx, ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying administrators")
	}
	adms := make([]admin.Administrator, 0, len(rows))
	for _, r := range rows {
		adms = append(adms, repo.fromRow(r))
	}
	return adms, nil
}

func (repo adminRepository) UpdateAdministrator(ctx context.Context, adm admin.Administrator, exec ...core.DBExecutor) (admin.Administrator, error) {
	r := repo.toRow(adm)
	cols := adminColumns[1:]
	args := append(r.values()[1:], r.ID)

	var updated administratorRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &updated, updateQuery("administrators", cols), args...); err != nil {
		return admin.Administrator{}, trapNoRowsErr(err, admin.ErrNotFound, "updating administrator")
	}
	return repo.fromRow(updated), nil
}
