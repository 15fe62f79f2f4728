package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "adminToken",
		Claims:        new(Claims),
	}
	contextAdminKey = "administrator"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	IsSuperAdmin bool   `json:"is_super_admin,omitempty"`
}

func GetAdministratorClaims(adm admin.Administrator, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   adm.ID,
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         adm.Name,
		Email:        adm.Email,
		IsSuperAdmin: adm.IsSuperAdmin,
	}
}

func authenticate(ctx context.Context, email, pwd string, svc *admin.Service) (*Claims, error) {
	adm, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding administrator by email")
	}
	if err = adm.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !adm.IsActive {
		return nil, errAccountDeactivated
	}
	if adm, err = svc.SetLastLogin(ctx, adm); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetAdministratorClaims(adm), nil
}

// GenerateToken generates a signed JWT token string representing the administrator Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextAdministrator(ctx echo.Context, svc *admin.Service, clms ...Claims) (admin.Administrator, error) {
	if adm, ok := ctx.Get(contextAdminKey).(admin.Administrator); ok {
		return adm, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else if claims, err = getContextClaims(ctx); err != nil {
		return admin.Administrator{}, errors.Wrap(err, "getting context claims")
	}

	adm, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return admin.Administrator{}, errUnauthorized
		}
		return admin.Administrator{}, errors.Wrap(err, "finding administrator by ID")
	}
	ctx.Set(contextAdminKey, adm)
	return adm, nil
}

func refreshToken(ctx echo.Context, svc *admin.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	adm, err := getContextAdministrator(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context administrator")
	}

	// check if the administrator is still active
	if !adm.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(GetAdministratorClaims(adm, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
