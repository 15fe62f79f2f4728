package group

import (
	"time"

	"github.com/trezcool/tuition/core"
)

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// StudentCount is the number of students of a group (dashboard).
type StudentCount struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Students  int    `json:"students"`
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

func (ng *NewGroup) Validate() error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	return core.Validate.Struct(ng)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
type UpdateGroup struct {
	Name        string  `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (ug *UpdateGroup) Validate(origGrp Group) error {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = origGrp.Name
	}
	if ug.Description != nil {
		desc := core.CleanString(*ug.Description)
		ug.Description = &desc
	}
	return core.Validate.Struct(ug)
}

type QueryFilter struct {
	IDs    []string `query:"-"` // nil means no restriction
	Search string   `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
