package deletion

import (
	"github.com/trezcool/tuition/core"
)

type EntityType string

const (
	EntityGroup       EntityType = "group"
	EntityStudent     EntityType = "student"
	EntityPlan        EntityType = "payment_plan"
	EntityInstallment EntityType = "installment"
)

func (et EntityType) Valid() bool {
	switch et {
	case EntityGroup, EntityStudent, EntityPlan, EntityInstallment:
		return true
	}
	return false
}

// Check tells whether an entity can be deleted and what stands in the way or will be affected.
// A deletable entity may still carry a Warning the caller should acknowledge.
type Check struct {
	CanDelete      bool                 `json:"can_delete"`
	BlockReason    string               `json:"block_reason,omitempty"`
	Warning        string               `json:"warning,omitempty"`
	DependentItems []core.DependentItem `json:"dependent_items"`
}

func (c Check) err() error {
	if c.CanDelete {
		return nil
	}
	return core.NewRuleError(c.BlockReason, c.DependentItems...)
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
