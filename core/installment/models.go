package installment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
)

type Status string

const (
	StatusOpen    Status = "em_aberto"
	StatusOverdue Status = "atrasada"
	StatusPaid    Status = "paga"
)

// UnpaidStatuses are the statuses of installments still owed.
var UnpaidStatuses = []Status{StatusOpen, StatusOverdue}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusOverdue, StatusPaid:
		return true
	}
	return false
}

// CheckPayment guards what repositories persist: a known status, and a payment date set only when paid.
func CheckPayment(status Status, paymentDate null.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if (status == StatusPaid) != paymentDate.Valid {
		return ErrPaymentDate
	}
	return nil
}

type Installment struct {
	ID          string          `json:"id"`
	PlanID      string          `json:"payment_plan_id"`
	StudentID   string          `json:"student_id"`
	Number      int             `json:"installment_number"`
	DueDate     time.Time       `json:"due_date"`
	Value       decimal.Decimal `json:"value"`
	Status      Status          `json:"status"`
	PaymentDate null.Time       `json:"payment_date"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
}

// MarshalJSON renders the value with two decimal places.
func (inst Installment) MarshalJSON() ([]byte, error) {
	type alias Installment
	return json.Marshal(struct {
		alias
		Value string `json:"value"`
	}{alias(inst), inst.Value.StringFixed(2)})
}

func (inst Installment) IsPaid() bool {
	return inst.Status == StatusPaid
}

// Effective returns a copy of inst carrying its status as of now.
func (inst Installment) Effective(now time.Time) Installment {
	inst.Status = DeriveStatus(inst, now)
	return inst
}

// DeriveStatus computes the status of inst as of now.
// Paid installments stay paid; unpaid ones are overdue once their due day is strictly before today.
func DeriveStatus(inst Installment, now time.Time) Status {
	if inst.Status == StatusPaid {
		return StatusPaid
	}
	if core.TruncateDay(inst.DueDate).Before(core.TruncateDay(now)) {
		return StatusOverdue
	}
	return StatusOpen
}

// Draft is an installment about to be persisted.
type Draft struct {
	PlanID      string
	StudentID   string
	Number      int
	DueDate     time.Time
	Value       decimal.Decimal
	Status      Status
	PaymentDate null.Time
}

// Schedule holds what the generator needs to know about a plan & the student it is generated for.
type Schedule struct {
	PlanID            string
	StudentID         string
	TotalInstallments int
	InstallmentValue  decimal.Decimal
	StartDate         time.Time
}

// QueryFilter applies AND operation on the set fields.
// GroupIDs restricts installments to plans of the given groups: nil means no restriction, empty matches nothing.
type QueryFilter struct {
	IDs       []string
	PlanID    string
	StudentID string
	GroupIDs  []string
	Statuses  []Status
	DueFrom   time.Time // inclusive
	DueBefore time.Time // exclusive
	PaidFrom  time.Time // inclusive
	PaidTo    time.Time // inclusive
}

// IsScoped reports whether filter targets a specific installment, plan or student.
// Bulk deletes refuse unscoped filters.
func (f QueryFilter) IsScoped() bool {
	return len(f.IDs) > 0 || f.PlanID != "" || f.StudentID != ""
}

// MatchStatus reports whether status passes the Statuses filter.
func (f QueryFilter) MatchStatus(status Status) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

type UpdatePayment struct {
	Paid        bool   `json:"paid"`
	PaymentDate string `json:"payment_date" validate:"omitempty,date"`
}

func (up *UpdatePayment) Validate() error {
	up.PaymentDate = core.CleanString(up.PaymentDate)
	return core.Validate.Struct(up)
}
