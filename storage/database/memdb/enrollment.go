package memdb

import (
	"context"
	"sort"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) GetAssociation(_ context.Context, studentID string, _ ...core.DBExecutor) (enrollment.Association, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if assoc, ok := repo.db.associations[studentID]; ok {
		return assoc, nil
	}
	return enrollment.Association{}, enrollment.ErrNotAssigned
}

// CreateAssociation replaces any association of the student, as the student_id key does in Postgres.
func (repo *enrollmentRepository) CreateAssociation(_ context.Context, assoc enrollment.Association, _ ...core.DBExecutor) (enrollment.Association, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.associations[assoc.StudentID] = assoc
	return assoc, nil
}

func (repo *enrollmentRepository) DeleteAssociation(_ context.Context, studentID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.associations, studentID)
	return nil
}

func (repo *enrollmentRepository) DeletePlanAssociations(_ context.Context, planID string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for stdID, assoc := range repo.db.associations {
		if assoc.PlanID == planID {
			delete(repo.db.associations, stdID)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *enrollmentRepository) CountPlanStudents(ctx context.Context, planID string, _ ...core.DBExecutor) (int, error) {
	ids, err := repo.PlanStudentIDs(ctx, planID)
	return len(ids), err
}

func (repo *enrollmentRepository) PlanStudentIDs(_ context.Context, planID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := []string{}
	for stdID, assoc := range repo.db.associations {
		if assoc.PlanID == planID {
			ids = append(ids, stdID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *enrollmentRepository) HasPlan(_ context.Context, studentID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	_, ok := repo.db.associations[studentID]
	return ok, nil
}
