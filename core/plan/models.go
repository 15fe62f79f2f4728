package plan

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/installment"
)

type Plan struct {
	ID                string          `json:"id"`
	GroupID           string          `json:"group_id"`
	Name              string          `json:"name"`
	TotalInstallments int             `json:"total_installments"`
	InstallmentValue  decimal.Decimal `json:"installment_value"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	CreatedAt         time.Time       `json:"created_at"` // UTC
	UpdatedAt         time.Time       `json:"updated_at"` // UTC
}

// MarshalJSON renders the installment value with two decimal places.
func (p Plan) MarshalJSON() ([]byte, error) {
	type alias Plan
	return json.Marshal(struct {
		alias
		InstallmentValue string `json:"installment_value"`
	}{alias(p), p.InstallmentValue.StringFixed(2)})
}

// EndDate is the due date of the last of n installments starting on start.
func EndDate(start time.Time, n int) time.Time {
	if n < 1 {
		n = 1
	}
	return core.AddMonths(start, n-1)
}

// Schedule returns what the installment generator needs to build studentID's installments of plan.
func (p Plan) Schedule(studentID string) installment.Schedule {
	return installment.Schedule{
		PlanID:            p.ID,
		StudentID:         studentID,
		TotalInstallments: p.TotalInstallments,
		InstallmentValue:  p.InstallmentValue,
		StartDate:         p.StartDate,
	}
}

// Total is the amount owed over the whole plan.
func (p Plan) Total() decimal.Decimal {
	return p.InstallmentValue.Mul(decimal.NewFromInt(int64(p.TotalInstallments)))
}

// NewPlan contains information needed to create a new Plan.
type NewPlan struct {
	GroupID           string          `json:"group_id" validate:"required,uuid"`
	Name              string          `json:"name" validate:"required,notblank,max=255"`
	TotalInstallments int             `json:"total_installments" validate:"required,min=1,max=360"`
	InstallmentValue  decimal.Decimal `json:"installment_value" validate:"money"`
	StartDate         string          `json:"start_date" validate:"required,date"`
}

func (np *NewPlan) Validate() error {
	np.GroupID = core.CleanString(np.GroupID, true /* lower */)
	np.Name = core.CleanString(np.Name)
	np.StartDate = core.CleanString(np.StartDate)
	return core.Validate.Struct(np)
}

// UpdatePlan defines what information may be provided to modify an existing Plan.
// Installments already generated are left untouched.
type UpdatePlan struct {
	GroupID           string          `json:"group_id" validate:"omitempty,uuid"`
	Name              string          `json:"name" validate:"omitempty,max=255"`
	TotalInstallments int             `json:"total_installments" validate:"omitempty,min=1,max=360"`
	InstallmentValue  decimal.Decimal `json:"installment_value" validate:"omitempty,money"`
	StartDate         string          `json:"start_date" validate:"omitempty,date"`
}

// Validate fills the blanks of up with origPlan's values before validating it.
func (up *UpdatePlan) Validate(origPlan Plan) error {
	if gid := core.CleanString(up.GroupID, true /* lower */); gid != "" {
		up.GroupID = gid
	} else {
		up.GroupID = origPlan.GroupID
	}
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = origPlan.Name
	}
	if up.TotalInstallments == 0 {
		up.TotalInstallments = origPlan.TotalInstallments
	}
	if up.InstallmentValue.IsZero() {
		up.InstallmentValue = origPlan.InstallmentValue
	}
	if start := core.CleanString(up.StartDate); start != "" {
		up.StartDate = start
	} else {
		up.StartDate = origPlan.StartDate.Format(core.DateLayout)
	}
	return core.Validate.Struct(up)
}

type QueryFilter struct {
	GroupIDs []string `query:"-"` // nil means no restriction
	GroupID  string   `query:"group_id"`
	Search   string   `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.GroupID = core.CleanString(qf.GroupID, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}
