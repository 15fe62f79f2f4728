package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/group"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

type groupApi struct {
	svc      *group.Service
	admins   *admin.Service
	deletion *deletion.Service
}

func registerGroupAPI(
	g *echo.Group,
	jwt, scoped echo.MiddlewareFunc,
	svc *group.Service,
	admins *admin.Service,
	deletionSvc *deletion.Service,
) {
	api := groupApi{svc: svc, admins: admins, deletion: deletionSvc}

	gg := g.Group("/groups", jwt, scoped)
	gg.GET("", api.query)
	gg.POST("", api.create)

	// detail endpoints
	dg := gg.Group("/:id", objectMiddleware(api.load))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/deletion-check", api.deletionCheck)
	dg.POST("/administrators/:adminId", api.linkAdministrator, superAdminMiddleware)
	dg.DELETE("/administrators/:adminId", api.unlinkAdministrator, superAdminMiddleware)
}

func (api *groupApi) load(ctx echo.Context, id string) (interface{}, string, error) {
	grp, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return nil, "", err
	}
	return grp, grp.ID, nil
}

func contextGroup(ctx echo.Context) (group.Group, error) {
	grp, ok := ctx.Get(contextObjectKey).(group.Group)
	if !ok {
		return group.Group{}, errors.Wrap(errObjNotFoundInCtx, "retrieving group from context")
	}
	return grp, nil
}

// Handlers

func (api *groupApi) query(ctx echo.Context) error {
	filter := new(group.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []group.Group{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	grps, err := api.svc.Query(ctx.Request().Context(), getContextScope(ctx), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if grps == nil {
		grps = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, grps)
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), data, getContextScope(ctx).AdministratorID)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}

	var data group.UpdateGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err = data.Validate(grp); err != nil {
		return err
	}

	if grp, err = api.svc.Update(ctx.Request().Context(), grp, data); err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	res, err := api.deletion.Delete(ctx.Request().Context(), deletion.EntityGroup, grp.ID, false)
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *groupApi) deletionCheck(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	chk, err := api.deletion.Check(ctx.Request().Context(), deletion.EntityGroup, grp.ID)
	if err != nil {
		return errors.Wrap(err, "checking group deletion")
	}
	return ctx.JSON(http.StatusOK, chk)
}

func (api *groupApi) linkAdministrator(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	adm, err := api.admins.GetByID(ctx.Request().Context(), ctx.Param("adminId"))
	if err != nil {
		return errors.Wrap(err, "getting administrator")
	}
	if err = api.svc.LinkAdministrator(ctx.Request().Context(), grp.ID, adm.ID); err != nil {
		return errors.Wrap(err, "linking administrator")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) unlinkAdministrator(ctx echo.Context) error {
	grp, err := contextGroup(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.UnlinkAdministrator(ctx.Request().Context(), grp.ID, ctx.Param("adminId")); err != nil {
		return errors.Wrap(err, "unlinking administrator")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// checkGroupField makes sure the group a payload points to exists within scope.
func checkGroupField(ctx echo.Context, svc *group.Service, groupID string) error {
	fieldErr := core.NewValidationError(group.ErrNotFound, core.FieldError{Field: "group_id", Error: "group not found"})
	if !group.CanManage(getContextScope(ctx), groupID) {
		return fieldErr
	}
	if _, err := svc.Get(ctx.Request().Context(), groupID); err != nil {
		if errors.Cause(err) == group.ErrNotFound {
			return fieldErr
		}
		return errors.Wrap(err, "getting group")
	}
	return nil
}
