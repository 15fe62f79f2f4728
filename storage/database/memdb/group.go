package memdb

import (
	"context"
	"time"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) match(filter group.QueryFilter, grp group.Group) bool {
	if !inSet(filter.IDs, grp.ID) {
		return false
	}
	return filter.Search == "" || containsFold(grp.Name, filter.Search) || containsFold(grp.Description, filter.Search)
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	grp.ID = newID()
	repo.db.groups[grp.ID] = grp
	return grp, nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter group.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grps := make([]group.Group, 0, len(repo.db.groups))
	for _, grp := range repo.db.groups {
		if repo.match(filter, grp) {
			grps = append(grps, grp)
		}
	}
	sortBy(len(grps), func(i, j int) { grps[i], grps[j] = grps[j], grps[i] }, ordering, map[string]func(i, j int) bool{
		"name":       func(i, j int) bool { return grps[i].Name < grps[j].Name },
		"created_at": func(i, j int) bool { return grps[i].CreatedAt.Before(grps[j].CreatedAt) },
	}, "name")
	return grps, nil
}

func (repo *groupRepository) UpdateGroup(_ context.Context, grp group.Group, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groups[grp.ID]; !ok {
		return group.Group{}, group.ErrNotFound
	}
	repo.db.groups[grp.ID] = grp
	return grp, nil
}

func (repo *groupRepository) DeleteGroup(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groups[id]; !ok {
		return group.ErrNotFound
	}
	delete(repo.db.groups, id)
	return nil
}

func (repo *groupRepository) CountGroups(_ context.Context, filter group.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var cnt int
	for _, grp := range repo.db.groups {
		if repo.match(filter, grp) {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *groupRepository) CountStudentsPerGroup(ctx context.Context, filter group.QueryFilter, _ ...core.DBExecutor) ([]group.StudentCount, error) {
	grps, err := repo.QueryGroups(ctx, filter, nil)
	if err != nil {
		return nil, err
	}

	repo.db.RLock()
	defer repo.db.RUnlock()

	perGroup := make(map[string]int, len(grps))
	for _, std := range repo.db.students {
		perGroup[std.GroupID]++
	}
	counts := make([]group.StudentCount, 0, len(grps))
	for _, grp := range grps {
		counts = append(counts, group.StudentCount{GroupID: grp.ID, GroupName: grp.Name, Students: perGroup[grp.ID]})
	}
	return counts, nil
}

func (repo *groupRepository) LinkAdministrator(_ context.Context, groupID, adminID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groups[groupID]; !ok {
		return group.ErrNotFound
	}
	key := groupAdminKey{groupID: groupID, adminID: adminID}
	if _, ok := repo.db.groupAdmins[key]; !ok {
		repo.db.groupAdmins[key] = time.Now().UTC()
	}
	return nil
}

func (repo *groupRepository) UnlinkAdministrator(_ context.Context, groupID, adminID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.groupAdmins, groupAdminKey{groupID: groupID, adminID: adminID})
	return nil
}

func (repo *groupRepository) UnlinkAllAdministrators(_ context.Context, groupID string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for key := range repo.db.groupAdmins {
		if key.groupID == groupID {
			delete(repo.db.groupAdmins, key)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *groupRepository) AdministeredGroupIDs(_ context.Context, adminID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := []string{}
	for key := range repo.db.groupAdmins {
		if key.adminID == adminID {
			ids = append(ids, key.groupID)
		}
	}
	return ids, nil
}
