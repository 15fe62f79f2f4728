package admin

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/tuition/core"
)

type Administrator struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	LastLogin    null.Time `json:"last_login"` // UTC
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (adm *Administrator) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	adm.PasswordHash = hash
	return nil
}

func (adm *Administrator) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(adm.PasswordHash, []byte(pwd))
}

// Scope returns what adm may reach given the groups they administer.
func (adm Administrator) Scope(groupIDs []string) core.Scope {
	return core.Scope{
		AdministratorID: adm.ID,
		IsSuperAdmin:    adm.IsSuperAdmin,
		GroupIDs:        groupIDs,
	}
}

// NewAdministrator contains information needed to create a new Administrator.
type NewAdministrator struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	IsSuperAdmin    bool   `json:"is_super_admin"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAdministrator) Validate(svc *Service) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := core.Validate.Struct(na); err != nil {
		return err
	}
	return svc.checkUniqueness(na.Email)
}

type ResetPassword struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetPassword) Validate() error {
	rp.Email = core.CleanString(rp.Email, true /* lower */)
	return core.Validate.Struct(rp)
}

// ConfirmPasswordReset sets a new password from a reset link.
type ConfirmPasswordReset struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cpr *ConfirmPasswordReset) Validate() error {
	cpr.UID = core.CleanString(cpr.UID)
	cpr.Token = core.CleanString(cpr.Token)
	return core.Validate.Struct(cpr)
}

// resetMailData is what the password_reset templates render.
type resetMailData struct {
	Name     string
	ResetURL string
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
