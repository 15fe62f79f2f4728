package plan

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
)

var (
	// errors
	ErrNotFound = errors.New("payment plan not found")

	errGroupChangeWithStudents = "the plan cannot be moved to another group while students are associated with it"
)

type (
	Repository interface {
		CreatePlan(ctx context.Context, p Plan, exec ...core.DBExecutor) (Plan, error)
		GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (Plan, error)
		QueryPlans(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Plan, error)
		UpdatePlan(ctx context.Context, p Plan, exec ...core.DBExecutor) (Plan, error)
		DeletePlan(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// AssociationCounter counts the students associated with a plan.
	AssociationCounter interface {
		CountPlanStudents(ctx context.Context, planID string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo   Repository
		assocs AssociationCounter
		tx     core.Transactor
	}
)

func NewService(repo Repository, assocs AssociationCounter, tx core.Transactor) *Service {
	return &Service{repo: repo, assocs: assocs, tx: tx}
}

func (svc *Service) Create(ctx context.Context, np NewPlan) (Plan, error) {
	start, err := core.ParseDate(np.StartDate)
	if err != nil {
		return Plan{}, core.NewValidationError(err, core.FieldError{Field: "start_date", Error: err.Error()})
	}
	now := time.Now().UTC()
	p := Plan{
		GroupID:           np.GroupID,
		Name:              np.Name,
		TotalInstallments: np.TotalInstallments,
		InstallmentValue:  np.InstallmentValue.Round(2),
		StartDate:         start,
		EndDate:           EndDate(start, np.TotalInstallments),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.CreatePlan(ctx, p)
}

func (svc *Service) Get(ctx context.Context, id string) (Plan, error) {
	return svc.repo.GetPlan(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Plan, error) {
	return svc.repo.QueryPlans(ctx, filter, ordering)
}

// Update modifies the plan fields. It refuses to move a plan to another group while students are associated with it.
func (svc *Service) Update(ctx context.Context, orig Plan, up UpdatePlan) (Plan, error) {
	start, err := core.ParseDate(up.StartDate)
	if err != nil {
		return Plan{}, core.NewValidationError(err, core.FieldError{Field: "start_date", Error: err.Error()})
	}

	var p Plan
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if up.GroupID != orig.GroupID {
			cnt, err := svc.assocs.CountPlanStudents(ctx, orig.ID, exec)
			if err != nil {
				return errors.Wrap(err, "counting plan students")
			}
			if cnt > 0 {
				return core.NewRuleError(errGroupChangeWithStudents, core.DependentItem{Type: "students", Count: cnt})
			}
		}

		p = orig
		p.GroupID = up.GroupID
		p.Name = up.Name
		p.TotalInstallments = up.TotalInstallments
		p.InstallmentValue = up.InstallmentValue.Round(2)
		p.StartDate = start
		p.EndDate = EndDate(start, up.TotalInstallments)
		p.UpdatedAt = time.Now().UTC()
		p, err = svc.repo.UpdatePlan(ctx, p, exec)
		return err
	})
	if err != nil {
		return Plan{}, err
	}
	return p, nil
}
