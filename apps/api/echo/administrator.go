package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/group"
)

type administratorApi struct {
	svc    *admin.Service
	groups *group.Service
}

func registerAdministratorAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *admin.Service, groups *group.Service) {
	api := administratorApi{svc: svc, groups: groups}

	ag := g.Group("/administrators")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.requestPasswordReset)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	authed := ag.Group("", jwt)
	authed.POST("/token-refresh", api.refreshToken)
	authed.GET("/me", api.me)
	authed.GET("", api.query, superAdminMiddleware)
	authed.POST("", api.create, superAdminMiddleware)
}

// Handlers

func (api *administratorApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *administratorApi) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if cause := errors.Cause(err); !(cause == nil || cause == admin.ErrNotFound || cause == admin.ErrInactive) {
		// never tell the caller whether the account exists
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active administrator account, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *administratorApi) confirmPasswordReset(ctx echo.Context) error {
	var data admin.ConfirmPasswordReset
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmPasswordReset")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if _, err := api.svc.ConfirmPasswordReset(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "confirming password reset")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *administratorApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *administratorApi) me(ctx echo.Context) error {
	adm, err := getContextAdministrator(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context administrator")
	}
	groupIDs := []string{}
	if !adm.IsSuperAdmin {
		ids, err := api.groups.AdministeredGroupIDs(ctx.Request().Context(), adm.ID)
		if err != nil {
			return errors.Wrap(err, "getting administered groups")
		}
		groupIDs = append(groupIDs, ids...)
	}
	return ctx.JSON(http.StatusOK, MeResponse{Administrator: adm, GroupIDs: groupIDs})
}

func (api *administratorApi) query(ctx echo.Context) error {
	filter := new(admin.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []admin.Administrator{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	adms, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying administrators")
	}
	if adms == nil {
		adms = []admin.Administrator{}
	}
	return ctx.JSON(http.StatusOK, adms)
}

func (api *administratorApi) create(ctx echo.Context) error {
	var data admin.NewAdministrator
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdministrator")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	adm, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating administrator")
	}
	return ctx.JSON(http.StatusCreated, adm)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	MeResponse struct {
		admin.Administrator
		GroupIDs []string `json:"group_ids"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}
