package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/student"
)

type (
	Summary struct {
		TotalGroups      int                  `json:"total_groups"`
		TotalStudents    int                  `json:"total_students"`
		StudentsPerGroup []group.StudentCount `json:"students_per_group"`
		Payments         PaymentStats         `json:"payments"`
	}

	PaymentStats struct {
		TotalInstallments int             `json:"total_installments"`
		Paid              int             `json:"paid"`
		Open              int             `json:"open"`
		Overdue           int             `json:"overdue"`
		TotalAmount       decimal.Decimal `json:"total_amount"`
		PaidAmount        decimal.Decimal `json:"paid_amount"`
		OverdueAmount     decimal.Decimal `json:"overdue_amount"`
		// MonthlyReceivable sums the unpaid installments due in the current month.
		MonthlyReceivable decimal.Decimal `json:"monthly_receivable"`
		// PaidThisMonth sums the installments paid during the current month.
		PaidThisMonth     decimal.Decimal `json:"paid_this_month"`
		PaymentPercentage decimal.Decimal `json:"payment_percentage"`
	}

	Service struct {
		groups   group.Repository
		students student.Repository
		insts    installment.Repository
	}
)

// MarshalJSON renders the amounts with two decimal places.
func (ps PaymentStats) MarshalJSON() ([]byte, error) {
	type alias PaymentStats
	return json.Marshal(struct {
		alias
		TotalAmount       string `json:"total_amount"`
		PaidAmount        string `json:"paid_amount"`
		OverdueAmount     string `json:"overdue_amount"`
		MonthlyReceivable string `json:"monthly_receivable"`
		PaidThisMonth     string `json:"paid_this_month"`
		PaymentPercentage string `json:"payment_percentage"`
	}{
		alias:             alias(ps),
		TotalAmount:       ps.TotalAmount.StringFixed(2),
		PaidAmount:        ps.PaidAmount.StringFixed(2),
		OverdueAmount:     ps.OverdueAmount.StringFixed(2),
		MonthlyReceivable: ps.MonthlyReceivable.StringFixed(2),
		PaidThisMonth:     ps.PaidThisMonth.StringFixed(2),
		PaymentPercentage: ps.PaymentPercentage.StringFixed(2),
	})
}

func NewService(groups group.Repository, students student.Repository, insts installment.Repository) *Service {
	return &Service{groups: groups, students: students, insts: insts}
}

// Summary aggregates the dashboard figures over the groups reachable by scope, as of now.
func (svc *Service) Summary(ctx context.Context, scope core.Scope, now time.Time) (Summary, error) {
	groupIDs := scope.GroupFilter()

	var (
		sum Summary
		err error
	)
	if sum.TotalGroups, err = svc.groups.CountGroups(ctx, group.QueryFilter{IDs: groupIDs}); err != nil {
		return Summary{}, errors.Wrap(err, "counting groups")
	}
	if sum.TotalStudents, err = svc.students.CountStudents(ctx, student.QueryFilter{GroupIDs: groupIDs}); err != nil {
		return Summary{}, errors.Wrap(err, "counting students")
	}
	if sum.StudentsPerGroup, err = svc.groups.CountStudentsPerGroup(ctx, group.QueryFilter{IDs: groupIDs}); err != nil {
		return Summary{}, errors.Wrap(err, "counting students per group")
	}

	insts, err := svc.insts.QueryInstallments(ctx, installment.QueryFilter{GroupIDs: groupIDs})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying installments")
	}
	sum.Payments = paymentStats(insts, now)
	return sum, nil
}

func paymentStats(insts []installment.Installment, now time.Time) PaymentStats {
	monthStart := core.Date(now.Year(), now.Month(), 1)
	nextMonth := monthStart.AddDate(0, 1, 0)
	inMonth := func(t time.Time) bool {
		return !t.Before(monthStart) && t.Before(nextMonth)
	}

	stats := PaymentStats{
		TotalInstallments: len(insts),
		TotalAmount:       decimal.Zero,
		PaidAmount:        decimal.Zero,
		OverdueAmount:     decimal.Zero,
		MonthlyReceivable: decimal.Zero,
		PaidThisMonth:     decimal.Zero,
		PaymentPercentage: decimal.Zero,
	}
	for _, inst := range insts {
		stats.TotalAmount = stats.TotalAmount.Add(inst.Value)
		switch installment.DeriveStatus(inst, now) {
		case installment.StatusPaid:
			stats.Paid++
			stats.PaidAmount = stats.PaidAmount.Add(inst.Value)
			if inst.PaymentDate.Valid && inMonth(core.TruncateDay(inst.PaymentDate.Time)) {
				stats.PaidThisMonth = stats.PaidThisMonth.Add(inst.Value)
			}
			continue
		case installment.StatusOverdue:
			stats.Overdue++
			stats.OverdueAmount = stats.OverdueAmount.Add(inst.Value)
		default:
			stats.Open++
		}
		if inMonth(core.TruncateDay(inst.DueDate)) {
			stats.MonthlyReceivable = stats.MonthlyReceivable.Add(inst.Value)
		}
	}
	if stats.TotalInstallments > 0 {
		stats.PaymentPercentage = decimal.NewFromInt(int64(stats.Paid)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(stats.TotalInstallments)), 2)
	}
	return stats
}
