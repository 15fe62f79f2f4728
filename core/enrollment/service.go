package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
)

var (
	// errors
	ErrNotAssigned = errors.New("student is not associated with any payment plan")

	errPlanOtherGroup = "the payment plan belongs to another group"
	errUnassignPaid   = "the student has paid installments under this plan; remove the plan through the student deletion instead"
)

type (
	Repository interface {
		GetAssociation(ctx context.Context, studentID string, exec ...core.DBExecutor) (Association, error)
		CreateAssociation(ctx context.Context, assoc Association, exec ...core.DBExecutor) (Association, error)
		DeleteAssociation(ctx context.Context, studentID string, exec ...core.DBExecutor) error
		DeletePlanAssociations(ctx context.Context, planID string, exec ...core.DBExecutor) (int, error)
		CountPlanStudents(ctx context.Context, planID string, exec ...core.DBExecutor) (int, error)
		PlanStudentIDs(ctx context.Context, planID string, exec ...core.DBExecutor) ([]string, error)
		HasPlan(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		repo     Repository
		students student.Repository
		plans    plan.Repository
		insts    installment.Repository
		tx       core.Transactor
	}
)

func NewService(
	repo Repository,
	students student.Repository,
	plans plan.Repository,
	insts installment.Repository,
	tx core.Transactor,
) *Service {
	return &Service{repo: repo, students: students, plans: plans, insts: insts, tx: tx}
}

// Current returns the association of the student, or ErrNotAssigned.
func (svc *Service) Current(ctx context.Context, studentID string) (Association, error) {
	return svc.repo.GetAssociation(ctx, studentID)
}

// Assign associates the student with the plan and generates their installments, in one transaction.
//
// Assigning the current plan again is a no-op. When the student was under another plan, the old association and
// the old unpaid installments are removed; the new installments falling on the due date of an old paid one are
// generated paid with its payment date, and the old paid rows carried over that way are removed too.
// Old paid installments without a matching due date are kept under the old plan for history.
func (svc *Service) Assign(ctx context.Context, studentID, planID string) (Result, error) {
	var res Result
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		std, err := svc.students.GetStudent(ctx, studentID, exec)
		if err != nil {
			return err
		}
		p, err := svc.plans.GetPlan(ctx, planID, exec)
		if err != nil {
			return err
		}
		if p.GroupID != std.GroupID {
			return core.NewValidationError(nil, core.FieldError{Field: "payment_plan_id", Error: errPlanOtherGroup})
		}

		cur, err := svc.repo.GetAssociation(ctx, studentID, exec)
		switch {
		case err == nil && cur.PlanID == planID:
			res.Association = cur
			res.Installments, err = svc.insts.QueryInstallments(ctx, installment.QueryFilter{PlanID: planID, StudentID: studentID}, exec)
			return errors.Wrap(err, "querying current installments")
		case err != nil && errors.Cause(err) != ErrNotAssigned:
			return errors.Wrap(err, "getting current association")
		}

		var previousPaid []installment.Installment
		if err == nil {
			if previousPaid, err = svc.release(ctx, cur, exec); err != nil {
				return err
			}
		}

		res.Association, err = svc.repo.CreateAssociation(ctx, Association{
			StudentID: studentID,
			PlanID:    planID,
			CreatedAt: time.Now().UTC(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating association")
		}

		drafts := installment.Generate(p.Schedule(studentID), previousPaid)
		if err = svc.dropCarriedOver(ctx, drafts, previousPaid, exec); err != nil {
			return err
		}
		if res.Installments, err = svc.insts.CreateInstallments(ctx, drafts, exec); err != nil {
			return errors.Wrap(err, "creating installments")
		}
		for _, d := range drafts {
			if d.Status == installment.StatusPaid {
				res.Preserved++
			}
		}
		res.Changed = true
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// release removes cur and its unpaid installments, returning the paid ones left behind.
func (svc *Service) release(ctx context.Context, cur Association, exec core.DBExecutor) ([]installment.Installment, error) {
	paid, err := svc.insts.QueryInstallments(ctx, installment.QueryFilter{
		PlanID:    cur.PlanID,
		StudentID: cur.StudentID,
		Statuses:  []installment.Status{installment.StatusPaid},
	}, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying previous paid installments")
	}
	if err = svc.repo.DeleteAssociation(ctx, cur.StudentID, exec); err != nil {
		return nil, errors.Wrap(err, "deleting previous association")
	}
	_, err = svc.insts.DeleteInstallments(ctx, installment.QueryFilter{
		PlanID:    cur.PlanID,
		StudentID: cur.StudentID,
		Statuses:  installment.UnpaidStatuses,
	}, exec)
	if err != nil {
		return nil, errors.Wrap(err, "deleting previous installments")
	}
	return paid, nil
}

// dropCarriedOver deletes the previous paid installments now represented by a paid draft.
func (svc *Service) dropCarriedOver(ctx context.Context, drafts []installment.Draft, previousPaid []installment.Installment, exec core.DBExecutor) error {
	if len(previousPaid) == 0 {
		return nil
	}
	paidDueDates := make(map[time.Time]bool, len(drafts))
	for _, d := range drafts {
		if d.Status == installment.StatusPaid {
			paidDueDates[d.DueDate] = true
		}
	}
	var ids []string
	for _, inst := range previousPaid {
		day := core.TruncateDay(inst.DueDate)
		if paidDueDates[day] {
			ids = append(ids, inst.ID)
			delete(paidDueDates, day) // one old row per draft
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := svc.insts.DeleteInstallments(ctx, installment.QueryFilter{IDs: ids}, exec); err != nil {
		return errors.Wrap(err, "deleting carried over installments")
	}
	return nil
}

// Unassign removes the student's plan and its unpaid installments.
// It refuses when the student paid any installment under the plan.
func (svc *Service) Unassign(ctx context.Context, studentID string) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		cur, err := svc.repo.GetAssociation(ctx, studentID, exec)
		if err != nil {
			return err
		}

		paid, err := svc.insts.CountInstallments(ctx, installment.QueryFilter{
			PlanID:    cur.PlanID,
			StudentID: studentID,
			Statuses:  []installment.Status{installment.StatusPaid},
		}, exec)
		if err != nil {
			return errors.Wrap(err, "counting paid installments")
		}
		if paid > 0 {
			return core.NewRuleError(errUnassignPaid, core.DependentItem{Type: "paid_installments", Count: paid})
		}

		if err = svc.repo.DeleteAssociation(ctx, studentID, exec); err != nil {
			return errors.Wrap(err, "deleting association")
		}
		_, err = svc.insts.DeleteInstallments(ctx, installment.QueryFilter{
			PlanID:    cur.PlanID,
			StudentID: studentID,
			Statuses:  installment.UnpaidStatuses,
		}, exec)
		return errors.Wrap(err, "deleting installments")
	})
}
