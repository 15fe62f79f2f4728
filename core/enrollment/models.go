package enrollment

import (
	"time"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/installment"
)

// Association links a student to the plan currently governing their installments.
// A student has at most one association.
type Association struct {
	StudentID string    `json:"student_id"`
	PlanID    string    `json:"payment_plan_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type AssignPlan struct {
	PlanID string `json:"payment_plan_id" validate:"required,uuid"`
}

func (ap *AssignPlan) Validate() error {
	ap.PlanID = core.CleanString(ap.PlanID, true /* lower */)
	return core.Validate.Struct(ap)
}

// Result is what Assign did.
type Result struct {
	Association  Association               `json:"association"`
	Changed      bool                      `json:"changed"`
	Installments []installment.Installment `json:"installments"`
	// Preserved is the number of paid installments carried over from the previous plan.
	Preserved int `json:"preserved"`
}
