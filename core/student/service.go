package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")

	errGroupChangeWithPlan = "the student cannot change group while associated with a payment plan; remove the plan first"
)

type (
	Repository interface {
		CreateStudents(ctx context.Context, stds []Student, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		CountStudents(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// PlanChecker tells whether a student is associated with a payment plan.
	PlanChecker interface {
		HasPlan(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		repo  Repository
		plans PlanChecker
		tx    core.Transactor
	}
)

func NewService(repo Repository, plans PlanChecker, tx core.Transactor) *Service {
	return &Service{repo: repo, plans: plans, tx: tx}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	std := Student{
		GroupID:   ns.GroupID,
		Name:      ns.Name,
		Email:     nullString(ns.Email),
		Phone:     nullString(ns.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	stds, err := svc.repo.CreateStudents(ctx, []Student{std})
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	return stds[0], nil
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

// Update modifies the student. Moving a student to another group is refused while a plan is associated,
// since a plan only serves the students of its own group.
func (svc *Service) Update(ctx context.Context, orig Student, us UpdateStudent) (Student, error) {
	var std Student
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if us.GroupID != orig.GroupID {
			has, err := svc.plans.HasPlan(ctx, orig.ID, exec)
			if err != nil {
				return errors.Wrap(err, "checking student plan")
			}
			if has {
				return core.NewRuleError(errGroupChangeWithPlan, core.DependentItem{Type: "payment_plans", Count: 1})
			}
		}

		std = orig
		std.GroupID = us.GroupID
		std.Name = us.Name
		if us.Email != nil {
			std.Email = nullString(*us.Email)
		}
		if us.Phone != nil {
			std.Phone = nullString(*us.Phone)
		}
		std.UpdatedAt = time.Now().UTC()

		var err error
		std, err = svc.repo.UpdateStudent(ctx, std, exec)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return std, nil
}

// Import inserts the rows into the group in one transaction.
// Rows matching an existing student of the group (or an earlier row) on name & email, ignoring case, are skipped.
func (svc *Service) Import(ctx context.Context, imp Import) (ImportResult, error) {
	res := ImportResult{Imported: []Student{}}
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		existing, err := svc.repo.QueryStudents(ctx, QueryFilter{GroupIDs: []string{imp.GroupID}}, nil, exec)
		if err != nil {
			return errors.Wrap(err, "querying group students")
		}
		seen := make(map[string]bool, len(existing)+len(imp.Rows))
		for _, std := range existing {
			seen[std.dedupeKey()] = true
		}

		now := time.Now().UTC()
		stds := make([]Student, 0, len(imp.Rows))
		for _, row := range imp.Rows {
			key := dedupeKey(row.Name, row.Email)
			if seen[key] {
				res.Skipped++
				continue
			}
			seen[key] = true
			stds = append(stds, Student{
				GroupID:   imp.GroupID,
				Name:      row.Name,
				Email:     nullString(row.Email),
				Phone:     nullString(row.Phone),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		if len(stds) == 0 {
			return nil
		}

		if res.Imported, err = svc.repo.CreateStudents(ctx, stds, exec); err != nil {
			return errors.Wrap(err, "inserting students")
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
