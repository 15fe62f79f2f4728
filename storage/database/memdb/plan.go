package memdb

import (
	"context"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/plan"
)

type planRepository struct {
	db *DB
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *DB) plan.Repository {
	return &planRepository{db: db}
}

func (repo *planRepository) match(filter plan.QueryFilter, p plan.Plan) bool {
	if !inSet(filter.GroupIDs, p.GroupID) {
		return false
	}
	if filter.GroupID != "" && p.GroupID != filter.GroupID {
		return false
	}
	return filter.Search == "" || containsFold(p.Name, filter.Search)
}

func (repo *planRepository) CreatePlan(_ context.Context, p plan.Plan, _ ...core.DBExecutor) (plan.Plan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p.ID = newID()
	repo.db.plans[p.ID] = p
	return p, nil
}

func (repo *planRepository) GetPlan(_ context.Context, id string, _ ...core.DBExecutor) (plan.Plan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.plans[id]; ok {
		return p, nil
	}
	return plan.Plan{}, plan.ErrNotFound
}

func (repo *planRepository) QueryPlans(_ context.Context, filter plan.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]plan.Plan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	plans := make([]plan.Plan, 0)
	for _, p := range repo.db.plans {
		if repo.match(filter, p) {
			plans = append(plans, p)
		}
	}
	sortBy(len(plans), func(i, j int) { plans[i], plans[j] = plans[j], plans[i] }, ordering, map[string]func(i, j int) bool{
		"name":       func(i, j int) bool { return plans[i].Name < plans[j].Name },
		"start_date": func(i, j int) bool { return plans[i].StartDate.Before(plans[j].StartDate) },
		"created_at": func(i, j int) bool { return plans[i].CreatedAt.Before(plans[j].CreatedAt) },
	}, "name")
	return plans, nil
}

func (repo *planRepository) UpdatePlan(_ context.Context, p plan.Plan, _ ...core.DBExecutor) (plan.Plan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.plans[p.ID]; !ok {
		return plan.Plan{}, plan.ErrNotFound
	}
	repo.db.plans[p.ID] = p
	return p, nil
}

func (repo *planRepository) DeletePlan(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.plans[id]; !ok {
		return plan.ErrNotFound
	}
	delete(repo.db.plans, id)
	return nil
}
