package group

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
)

var (
	// errors
	ErrNotFound = errors.New("group not found")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		QueryGroups(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountGroups(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		CountStudentsPerGroup(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]StudentCount, error)

		// group <-> administrator links
		LinkAdministrator(ctx context.Context, groupID, adminID string, exec ...core.DBExecutor) error
		UnlinkAdministrator(ctx context.Context, groupID, adminID string, exec ...core.DBExecutor) error
		UnlinkAllAdministrators(ctx context.Context, groupID string, exec ...core.DBExecutor) (int, error)
		AdministeredGroupIDs(ctx context.Context, adminID string, exec ...core.DBExecutor) ([]string, error)
	}

	Service struct {
		repo Repository
		tx   core.Transactor
	}
)

func NewService(repo Repository, tx core.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

// CanManage reports whether scope may reach the group.
func CanManage(scope core.Scope, groupID string) bool {
	return scope.CanAccessGroup(groupID)
}

// Create creates the group and links its creator as one of its administrators, in one transaction.
// creatorID may be empty (CLI).
func (svc *Service) Create(ctx context.Context, ng NewGroup, creatorID string) (Group, error) {
	now := time.Now().UTC()
	grp := Group{
		Name:        ng.Name,
		Description: ng.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if grp, err = svc.repo.CreateGroup(ctx, grp, exec); err != nil {
			return errors.Wrap(err, "creating group")
		}
		if creatorID != "" {
			if err = svc.repo.LinkAdministrator(ctx, grp.ID, creatorID, exec); err != nil {
				return errors.Wrap(err, "linking group creator")
			}
		}
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	return grp, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

// Query returns the groups reachable by scope matching filter.
func (svc *Service) Query(ctx context.Context, scope core.Scope, filter QueryFilter, ordering []core.DBOrdering) ([]Group, error) {
	filter.IDs = scope.GroupFilter()
	return svc.repo.QueryGroups(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, orig Group, ug UpdateGroup) (Group, error) {
	grp := orig
	grp.Name = ug.Name
	if ug.Description != nil {
		grp.Description = *ug.Description
	}
	grp.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateGroup(ctx, grp)
}

func (svc *Service) LinkAdministrator(ctx context.Context, groupID, adminID string) error {
	return svc.repo.LinkAdministrator(ctx, groupID, adminID)
}

func (svc *Service) UnlinkAdministrator(ctx context.Context, groupID, adminID string) error {
	return svc.repo.UnlinkAdministrator(ctx, groupID, adminID)
}

func (svc *Service) AdministeredGroupIDs(ctx context.Context, adminID string) ([]string, error) {
	return svc.repo.AdministeredGroupIDs(ctx, adminID)
}
