package deletion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrUnknownEntity = errors.New("unknown entity type")

	msgGroupBlocked       = "this group has dependents preventing its deletion"
	msgPlanPaidBlocked    = "this plan has paid installments and cannot be deleted, to preserve the financial history"
	msgPlanStudentsFmt    = "this plan is associated with %d student(s); remove it from every associated student before deleting it"
	msgPlanStudentsWarn   = "this plan is associated with %d student(s); deleting it also removes their pending installments"
	msgStudentWarnFmt     = "this student has %d paid or overdue installment(s); choose whether to keep them for history or erase them"
	msgInstallmentBlocked = "paid installments cannot be deleted, to preserve the financial history"

	msgGroupDeleted         = "group deleted"
	msgStudentDeleted       = "student deleted; paid installments were kept for history"
	msgStudentErased        = "student and all their installments deleted"
	msgPlanDeleted          = "payment plan and its pending installments deleted"
	msgInstallmentDeleted   = "installment deleted"
	studentsDetailsPrefix   = "Students: "
	plansDetailsPrefix      = "Plans: "
	paidInstallmentsDetails = "Paid installments (protected financial history)"
)

type Service struct {
	groups   group.Repository
	students student.Repository
	plans    plan.Repository
	assocs   enrollment.Repository
	insts    installment.Repository
	tx       core.Transactor
}

func NewService(
	groups group.Repository,
	students student.Repository,
	plans plan.Repository,
	assocs enrollment.Repository,
	insts installment.Repository,
	tx core.Transactor,
) *Service {
	return &Service{groups: groups, students: students, plans: plans, assocs: assocs, insts: insts, tx: tx}
}

// Check evaluates, without mutating anything, whether the entity can be deleted.
// It returns the entity's ErrNotFound when it does not exist.
func (svc *Service) Check(ctx context.Context, entity EntityType, id string) (Check, error) {
	return svc.check(ctx, entity, id, nil)
}

func (svc *Service) check(ctx context.Context, entity EntityType, id string, exec core.DBExecutor) (Check, error) {
	if !entity.Valid() {
		return Check{}, ErrUnknownEntity
	}
	switch entity {
	case EntityGroup:
		return svc.checkGroup(ctx, id, exec)
	case EntityStudent:
		return svc.checkStudent(ctx, id, exec)
	case EntityPlan:
		return svc.checkPlan(ctx, id, exec)
	default:
		return svc.checkInstallment(ctx, id, exec)
	}
}

func (svc *Service) checkGroup(ctx context.Context, id string, exec core.DBExecutor) (Check, error) {
	if _, err := svc.groups.GetGroup(ctx, id, exec); err != nil {
		return Check{}, err
	}

	stds, err := svc.students.QueryStudents(ctx, student.QueryFilter{GroupIDs: []string{id}}, nil, exec)
	if err != nil {
		return Check{}, errors.Wrap(err, "querying group students")
	}
	plans, err := svc.plans.QueryPlans(ctx, plan.QueryFilter{GroupIDs: []string{id}}, nil, exec)
	if err != nil {
		return Check{}, errors.Wrap(err, "querying group plans")
	}

	chk := Check{CanDelete: true, DependentItems: []core.DependentItem{}}
	if len(stds) > 0 {
		names := make([]string, 0, len(stds))
		for _, s := range stds {
			names = append(names, s.Name)
		}
		chk.DependentItems = append(chk.DependentItems, core.DependentItem{
			Type:    "students",
			Count:   len(stds),
			Details: studentsDetailsPrefix + strings.Join(names, ", "),
		})
	}
	if len(plans) > 0 {
		names := make([]string, 0, len(plans))
		for _, p := range plans {
			names = append(names, p.Name)
		}
		chk.DependentItems = append(chk.DependentItems, core.DependentItem{
			Type:    "payment_plans",
			Count:   len(plans),
			Details: plansDetailsPrefix + strings.Join(names, ", "),
		})
	}
	if len(chk.DependentItems) > 0 {
		chk.CanDelete = false
		chk.BlockReason = msgGroupBlocked
	}
	return chk, nil
}

func (svc *Service) checkStudent(ctx context.Context, id string, exec core.DBExecutor) (Check, error) {
	if _, err := svc.students.GetStudent(ctx, id, exec); err != nil {
		return Check{}, err
	}

	paid, err := svc.insts.CountInstallments(ctx, installment.QueryFilter{
		StudentID: id,
		Statuses:  []installment.Status{installment.StatusPaid},
	}, exec)
	if err != nil {
		return Check{}, errors.Wrap(err, "counting paid installments")
	}
	// overdue is derived from the due date, whatever the stored status says
	overdue, err := svc.insts.CountInstallments(ctx, installment.QueryFilter{
		StudentID: id,
		Statuses:  installment.UnpaidStatuses,
		DueBefore: core.TruncateDay(NowFunc()),
	}, exec)
	if err != nil {
		return Check{}, errors.Wrap(err, "counting overdue installments")
	}

	chk := Check{CanDelete: true, DependentItems: []core.DependentItem{}}
	if paid > 0 {
		chk.DependentItems = append(chk.DependentItems, core.DependentItem{Type: "paid_installments", Count: paid, Details: "Paid installments"})
	}
	if overdue > 0 {
		chk.DependentItems = append(chk.DependentItems, core.DependentItem{Type: "overdue_installments", Count: overdue, Details: "Overdue installments"})
	}
	if paid+overdue > 0 {
		chk.Warning = fmt.Sprintf(msgStudentWarnFmt, paid+overdue)
	}
	return chk, nil
}

func (svc *Service) checkPlan(ctx context.Context, id string, exec core.DBExecutor) (Check, error) {
	if _, err := svc.plans.GetPlan(ctx, id, exec); err != nil {
		return Check{}, err
	}

	paid, err := svc.insts.CountInstallments(ctx, installment.QueryFilter{
		PlanID:   id,
		Statuses: []installment.Status{installment.StatusPaid},
	}, exec)
	if err != nil {
		return Check{}, errors.Wrap(err, "counting paid installments")
	}
	if paid > 0 {
		return Check{
			BlockReason: msgPlanPaidBlocked,
			DependentItems: []core.DependentItem{
				{Type: "paid_installments", Count: paid, Details: paidInstallmentsDetails},
			},
		}, nil
	}

	stdIDs, err := svc.assocs.PlanStudentIDs(ctx, id, exec)
	if err != nil {
		return Check{}, errors.Wrap(err, "querying plan students")
	}
	if len(stdIDs) > 0 {
		stds, err := svc.students.QueryStudents(ctx, student.QueryFilter{IDs: stdIDs}, nil, exec)
		if err != nil {
			return Check{}, errors.Wrap(err, "querying plan students")
		}
		names := make([]string, 0, len(stds))
		for _, s := range stds {
			names = append(names, s.Name)
		}
		return Check{
			BlockReason: fmt.Sprintf(msgPlanStudentsFmt, len(stdIDs)),
			Warning:     fmt.Sprintf(msgPlanStudentsWarn, len(stdIDs)),
			DependentItems: []core.DependentItem{
				{Type: "associated_students", Count: len(stdIDs), Details: studentsDetailsPrefix + strings.Join(names, ", ")},
			},
		}, nil
	}

	return Check{CanDelete: true, DependentItems: []core.DependentItem{}}, nil
}

func (svc *Service) checkInstallment(ctx context.Context, id string, exec core.DBExecutor) (Check, error) {
	inst, err := svc.insts.GetInstallment(ctx, id, exec)
	if err != nil {
		return Check{}, err
	}
	if inst.IsPaid() {
		return Check{BlockReason: msgInstallmentBlocked, DependentItems: []core.DependentItem{}}, nil
	}
	return Check{CanDelete: true, DependentItems: []core.DependentItem{}}, nil
}

// Delete re-runs the deletion check then removes the entity with its dependents, in one transaction.
// A blocked deletion fails with a *core.RuleError and mutates nothing.
// fullErase only matters for students: their paid installments are kept for history unless it is set.
func (svc *Service) Delete(ctx context.Context, entity EntityType, id string, fullErase bool) (Result, error) {
	var res Result
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		chk, err := svc.check(ctx, entity, id, exec)
		if err != nil {
			return err
		}
		if err = chk.err(); err != nil {
			return err
		}

		switch entity {
		case EntityGroup:
			res.Message, err = svc.deleteGroup(ctx, id, exec)
		case EntityStudent:
			res.Message, err = svc.deleteStudent(ctx, id, fullErase, exec)
		case EntityPlan:
			res.Message, err = svc.deletePlan(ctx, id, exec)
		case EntityInstallment:
			res.Message, err = svc.deleteInstallment(ctx, id, exec)
		}
		return err
	})
	if err != nil {
		return Result{}, err
	}
	res.Success = true
	return res, nil
}

func (svc *Service) deleteGroup(ctx context.Context, id string, exec core.DBExecutor) (string, error) {
	if _, err := svc.groups.UnlinkAllAdministrators(ctx, id, exec); err != nil {
		return "", errors.Wrap(err, "unlinking group administrators")
	}
	if err := svc.groups.DeleteGroup(ctx, id, exec); err != nil {
		return "", errors.Wrap(err, "deleting group")
	}
	return msgGroupDeleted, nil
}

func (svc *Service) deleteStudent(ctx context.Context, id string, fullErase bool, exec core.DBExecutor) (string, error) {
	filter := installment.QueryFilter{StudentID: id}
	msg := msgStudentErased
	if !fullErase {
		filter.Statuses = installment.UnpaidStatuses
		msg = msgStudentDeleted
	}
	if _, err := svc.insts.DeleteInstallments(ctx, filter, exec); err != nil {
		return "", errors.Wrap(err, "deleting student installments")
	}
	if err := svc.assocs.DeleteAssociation(ctx, id, exec); err != nil && errors.Cause(err) != enrollment.ErrNotAssigned {
		return "", errors.Wrap(err, "deleting student association")
	}
	if err := svc.students.DeleteStudent(ctx, id, exec); err != nil {
		return "", errors.Wrap(err, "deleting student")
	}
	return msg, nil
}

func (svc *Service) deletePlan(ctx context.Context, id string, exec core.DBExecutor) (string, error) {
	_, err := svc.insts.DeleteInstallments(ctx, installment.QueryFilter{PlanID: id, Statuses: installment.UnpaidStatuses}, exec)
	if err != nil {
		return "", errors.Wrap(err, "deleting plan installments")
	}
	if _, err = svc.assocs.DeletePlanAssociations(ctx, id, exec); err != nil {
		return "", errors.Wrap(err, "deleting plan associations")
	}
	if err = svc.plans.DeletePlan(ctx, id, exec); err != nil {
		return "", errors.Wrap(err, "deleting plan")
	}
	return msgPlanDeleted, nil
}

func (svc *Service) deleteInstallment(ctx context.Context, id string, exec core.DBExecutor) (string, error) {
	if _, err := svc.insts.DeleteInstallments(ctx, installment.QueryFilter{IDs: []string{id}}, exec); err != nil {
		return "", errors.Wrap(err, "deleting installment")
	}
	return msgInstallmentDeleted, nil
}
