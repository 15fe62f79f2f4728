package admin

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
)

var (
	// errors
	ErrNotFound    = errors.New("administrator not found")
	ErrEmailExists = errors.New("an administrator with this email already exists")
	ErrInactive    = errors.New("administrator account is deactivated")

	errInvalidValue = "invalid value"
)

const resetTemplateName = "password_reset"

type (
	Repository interface {
		EmailExists(ctx context.Context, email string, exec ...core.DBExecutor) (bool, error)
		CreateAdministrator(ctx context.Context, adm Administrator, exec ...core.DBExecutor) (Administrator, error)
		GetAdministrator(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Administrator, error)
		QueryAdministrators(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Administrator, error)
		UpdateAdministrator(ctx context.Context, adm Administrator, exec ...core.DBExecutor) (Administrator, error)
	}

	// GetFilter finds an administrator by ID or (if ID is empty) by Email.
	GetFilter struct {
		ID    string
		Email string
	}

	Service struct {
		repo   Repository
		mailer core.EmailService
	}
)

func NewService(repo Repository, mailer core.EmailService) *Service {
	return &Service{repo: repo, mailer: mailer}
}

func (svc *Service) checkUniqueness(email string) error {
	exists, err := svc.repo.EmailExists(context.Background(), email)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, na NewAdministrator) (Administrator, error) {
	now := time.Now().UTC()
	adm := Administrator{
		Name:         na.Name,
		Email:        na.Email,
		IsSuperAdmin: na.IsSuperAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := adm.SetPassword(na.Password); err != nil {
		return Administrator{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateAdministrator(ctx, adm)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Administrator, error) {
	return svc.repo.GetAdministrator(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Administrator, error) {
	return svc.repo.GetAdministrator(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Administrator, error) {
	return svc.repo.QueryAdministrators(ctx, filter, ordering)
}

func (svc *Service) SetLastLogin(ctx context.Context, adm Administrator) (Administrator, error) {
	now := time.Now().UTC()
	adm.LastLogin = null.TimeFrom(now)
	adm.UpdatedAt = now
	return svc.repo.UpdateAdministrator(ctx, adm)
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) (Administrator, error) {
	adm, err := svc.GetByEmail(ctx, rp.Email)
	if err != nil {
		return Administrator{}, err
	}
	if err = adm.SetPassword(rp.Password); err != nil {
		return Administrator{}, errors.Wrap(err, "hashing password")
	}
	adm.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAdministrator(ctx, adm)
}

// RequestPasswordReset mails a password reset link to the active administrator owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	adm, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !adm.IsActive {
		return ErrInactive
	}

	token, err := MakeResetToken(adm)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: adm.Name, Address: adm.Email}},
		Subject:      "Password reset",
		TemplateName: resetTemplateName,
		TemplateData: resetMailData{
			Name: adm.Name,
			ResetURL: fmt.Sprintf(
				"%s/password-reset/%s/%s", strings.TrimSuffix(core.Conf.FrontendBaseURL, "/"), EncodeUID(adm), token,
			),
		},
	})
	return nil
}

// ConfirmPasswordReset sets the new password once the link's uid & token check out.
// Unknown uids and bad or expired tokens are reported as field errors.
func (svc *Service) ConfirmPasswordReset(ctx context.Context, cpr ConfirmPasswordReset) (Administrator, error) {
	badUID := core.NewValidationError(nil, core.FieldError{Field: "uid", Error: errInvalidValue})

	id, err := decodeUID(cpr.UID)
	if err != nil {
		return Administrator{}, badUID
	}
	adm, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Administrator{}, badUID
		}
		return Administrator{}, err
	}
	if !adm.IsActive {
		return Administrator{}, badUID
	}
	if err = verifyResetToken(adm, cpr.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return Administrator{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: errInvalidValue})
		}
		return Administrator{}, err
	}
	if err = CheckPasswordPolicy(cpr.Password, adm.Name, adm.Email); err != nil {
		return Administrator{}, err
	}

	if err = adm.SetPassword(cpr.Password); err != nil {
		return Administrator{}, errors.Wrap(err, "hashing password")
	}
	adm.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAdministrator(ctx, adm)
}
