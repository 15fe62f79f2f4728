package installment

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
)

// Generate builds the installments of sched.
// Installment i (0-based) is due i calendar months after the start date, clamped to the end of shorter months.
// Drafts falling on the due date of a previously paid installment keep it paid, with its payment date;
// all the others are open.
func Generate(sched Schedule, previousPaid []Installment) []Draft {
	if sched.TotalInstallments <= 0 {
		return nil
	}

	paidByDueDate := make(map[time.Time]Installment, len(previousPaid))
	for _, inst := range previousPaid {
		if !inst.IsPaid() {
			continue
		}
		day := core.TruncateDay(inst.DueDate)
		if _, ok := paidByDueDate[day]; !ok {
			paidByDueDate[day] = inst
		}
	}

	drafts := make([]Draft, 0, sched.TotalInstallments)
	for i := 0; i < sched.TotalInstallments; i++ {
		d := Draft{
			PlanID:    sched.PlanID,
			StudentID: sched.StudentID,
			Number:    i + 1,
			DueDate:   core.AddMonths(sched.StartDate, i),
			Value:     sched.InstallmentValue,
			Status:    StatusOpen,
		}
		if paid, ok := paidByDueDate[d.DueDate]; ok {
			d.Status = StatusPaid
			d.PaymentDate = paid.PaymentDate
			if !d.PaymentDate.Valid {
				d.PaymentDate = null.TimeFrom(d.DueDate)
			}
		}
		drafts = append(drafts, d)
	}
	return drafts
}
