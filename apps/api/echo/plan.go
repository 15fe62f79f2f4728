package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/plan"
)

type planApi struct {
	svc      *plan.Service
	groups   *group.Service
	deletion *deletion.Service
}

func registerPlanAPI(
	g *echo.Group,
	jwt, scoped echo.MiddlewareFunc,
	svc *plan.Service,
	groups *group.Service,
	deletionSvc *deletion.Service,
) {
	api := planApi{svc: svc, groups: groups, deletion: deletionSvc}

	pg := g.Group("/plans", jwt, scoped)
	pg.GET("", api.query)
	pg.POST("", api.create)

	// detail endpoints
	dg := pg.Group("/:id", objectMiddleware(api.load))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/deletion-check", api.deletionCheck)
}

func (api *planApi) load(ctx echo.Context, id string) (interface{}, string, error) {
	p, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return nil, "", err
	}
	return p, p.GroupID, nil
}

func contextPlan(ctx echo.Context) (plan.Plan, error) {
	p, ok := ctx.Get(contextObjectKey).(plan.Plan)
	if !ok {
		return plan.Plan{}, errors.Wrap(errObjNotFoundInCtx, "retrieving plan from context")
	}
	return p, nil
}

// Handlers

func (api *planApi) query(ctx echo.Context) error {
	filter := new(plan.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []plan.Plan{})
	}
	filter.Clean()
	filter.GroupIDs = getContextScope(ctx).GroupFilter()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	plans, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying plans")
	}
	if plans == nil {
		plans = []plan.Plan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *planApi) create(ctx echo.Context) error {
	var data plan.NewPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlan")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if err := checkGroupField(ctx, api.groups, data.GroupID); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating plan")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *planApi) retrieve(ctx echo.Context) error {
	p, err := contextPlan(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) update(ctx echo.Context) error {
	p, err := contextPlan(ctx)
	if err != nil {
		return err
	}

	var data plan.UpdatePlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlan")
	}
	if err = data.Validate(p); err != nil {
		return err
	}
	if data.GroupID != p.GroupID {
		if err = checkGroupField(ctx, api.groups, data.GroupID); err != nil {
			return err
		}
	}

	if p, err = api.svc.Update(ctx.Request().Context(), p, data); err != nil {
		return errors.Wrap(err, "updating plan")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) destroy(ctx echo.Context) error {
	p, err := contextPlan(ctx)
	if err != nil {
		return err
	}
	res, err := api.deletion.Delete(ctx.Request().Context(), deletion.EntityPlan, p.ID, false)
	if err != nil {
		return errors.Wrap(err, "deleting plan")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *planApi) deletionCheck(ctx echo.Context) error {
	p, err := contextPlan(ctx)
	if err != nil {
		return err
	}
	chk, err := api.deletion.Check(ctx.Request().Context(), deletion.EntityPlan, p.ID)
	if err != nil {
		return errors.Wrap(err, "checking plan deletion")
	}
	return ctx.JSON(http.StatusOK, chk)
}
