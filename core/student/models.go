package student

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
)

type Student struct {
	ID        string      `json:"id"`
	GroupID   string      `json:"group_id"`
	Name      string      `json:"name"`
	Email     null.String `json:"email"`
	Phone     null.String `json:"phone"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

// dedupeKey identifies a student for imports: case-insensitive name & email.
func dedupeKey(name, email string) string {
	return strings.ToLower(core.CleanString(name)) + "|" + strings.ToLower(core.CleanString(email))
}

func (s Student) dedupeKey() string {
	return dedupeKey(s.Name, s.Email.String)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	GroupID string `json:"group_id" validate:"required,uuid"`
	Name    string `json:"name" validate:"required,notblank,max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=50"`
}

func (ns *NewStudent) Validate() error {
	ns.GroupID = core.CleanString(ns.GroupID, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	return core.Validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Email and Phone are cleared when set to an empty string.
type UpdateStudent struct {
	GroupID string  `json:"group_id" validate:"omitempty,uuid"`
	Name    string  `json:"name" validate:"omitempty,max=255"`
	Email   *string `json:"email" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
}

func (us *UpdateStudent) Validate(origStd Student) error {
	if gid := core.CleanString(us.GroupID, true /* lower */); gid != "" {
		us.GroupID = gid
	} else {
		us.GroupID = origStd.GroupID
	}
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = origStd.Name
	}
	if us.Email != nil {
		email := core.CleanString(*us.Email, true /* lower */)
		us.Email = &email
		if email != "" {
			if err := core.Validate.Var(email, "email"); err != nil {
				return core.NewValidationError(nil, core.FieldError{Field: "email", Error: "must be a valid email address"})
			}
		}
	}
	if us.Phone != nil {
		phone := core.CleanString(*us.Phone)
		us.Phone = &phone
	}
	return core.Validate.Struct(us)
}

// ImportRow is one already parsed & validated row of a students import.
type ImportRow struct {
	Name  string `json:"name" validate:"required,notblank,max=255"`
	Email string `json:"email" validate:"omitempty,email,max=255"`
	Phone string `json:"phone" validate:"omitempty,max=50"`
}

type Import struct {
	GroupID string      `json:"group_id" validate:"required,uuid"`
	Rows    []ImportRow `json:"rows" validate:"required,min=1,max=5000,dive"`
}

func (imp *Import) Validate() error {
	imp.GroupID = core.CleanString(imp.GroupID, true /* lower */)
	for i := range imp.Rows {
		imp.Rows[i].Name = core.CleanString(imp.Rows[i].Name)
		imp.Rows[i].Email = core.CleanString(imp.Rows[i].Email, true /* lower */)
		imp.Rows[i].Phone = core.CleanString(imp.Rows[i].Phone)
	}
	return core.Validate.Struct(imp)
}

// ImportResult reports what an import did.
type ImportResult struct {
	Imported []Student `json:"imported"`
	Skipped  int       `json:"skipped"`
}

type QueryFilter struct {
	IDs      []string `query:"-"`
	GroupIDs []string `query:"-"` // nil means no restriction
	GroupID  string   `query:"group_id"`
	Search   string   `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.GroupID = core.CleanString(qf.GroupID, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}
