package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/enrollment"
)

type associationRow struct {
	StudentID string    `db:"student_id"`
	PlanID    string    `db:"payment_plan_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r associationRow) association() enrollment.Association {
	return enrollment.Association{StudentID: r.StudentID, PlanID: r.PlanID, CreatedAt: r.CreatedAt}
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) GetAssociation(ctx context.Context, studentID string, exec ...core.DBExecutor) (enrollment.Association, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return enrollment.Association{}, enrollment.ErrNotAssigned
	}
	var r associationRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r,
		"SELECT * FROM student_payment_plans WHERE student_id = $1", studentID)
	if err != nil {
		return enrollment.Association{}, trapNoRowsErr(err, enrollment.ErrNotAssigned, "finding association")
	}
	return r.association(), nil
}

// CreateAssociation replaces any association of the student (student_id is the key).
func (repo enrollmentRepository) CreateAssociation(ctx context.Context, assoc enrollment.Association, exec ...core.DBExecutor) (enrollment.Association, error) {
	var r associationRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r,
		`INSERT INTO student_payment_plans (student_id, payment_plan_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (student_id) DO UPDATE SET payment_plan_id = EXCLUDED.payment_plan_id, created_at = EXCLUDED.created_at
		RETURNING *`,
		assoc.StudentID, assoc.PlanID, assoc.CreatedAt.UTC())
	if err != nil {
		return enrollment.Association{}, errors.Wrap(err, "inserting association")
	}
	return r.association(), nil
}

func (repo enrollmentRepository) DeleteAssociation(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	_, err := getExec(repo.db, exec).ExecContext(ctx, "DELETE FROM student_payment_plans WHERE student_id = $1", studentID)
	return errors.Wrap(err, "deleting association")
}

func (repo enrollmentRepository) DeletePlanAssociations(ctx context.Context, planID string, exec ...core.DBExecutor) (int, error) {
	res, err := getExec(repo.db, exec).ExecContext(ctx, "DELETE FROM student_payment_plans WHERE payment_plan_id = $1", planID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting plan associations")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting plan associations")
}

func (repo enrollmentRepository) CountPlanStudents(ctx context.Context, planID string, exec ...core.DBExecutor) (int, error) {
	cnt, err := count(ctx, getExec(repo.db, exec),
		"SELECT COUNT(*) FROM student_payment_plans WHERE payment_plan_id = ?", []interface{}{planID})
	return cnt, errors.Wrap(err, "counting plan students")
}

func (repo enrollmentRepository) PlanStudentIDs(ctx context.Context, planID string, exec ...core.DBExecutor) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &ids,
		"SELECT student_id FROM student_payment_plans WHERE payment_plan_id = $1 ORDER BY student_id", planID)
	if err != nil {
		return nil, errors.Wrap(err, "querying plan students")
	}
	return ids, nil
}

func (repo enrollmentRepository) HasPlan(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &exists,
		"SELECT EXISTS (SELECT 1 FROM student_payment_plans WHERE student_id = $1)", studentID)
	if err != nil {
		return false, errors.Wrap(err, "checking student plan")
	}
	return exists, nil
}
