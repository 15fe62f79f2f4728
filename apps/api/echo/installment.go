package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
)

type installmentApi struct {
	svc      *installment.Service
	plans    *plan.Service
	deletion *deletion.Service
}

func registerInstallmentAPI(
	g *echo.Group,
	jwt, scoped echo.MiddlewareFunc,
	svc *installment.Service,
	plans *plan.Service,
	deletionSvc *deletion.Service,
) {
	api := installmentApi{svc: svc, plans: plans, deletion: deletionSvc}

	ig := g.Group("/installments/:id", jwt, scoped, objectMiddleware(api.load))
	ig.GET("", api.retrieve)
	ig.PUT("/payment", api.pay)
	ig.DELETE("", api.destroy)
	ig.GET("/deletion-check", api.deletionCheck)
}

// load scopes an installment through the group of its plan.
func (api *installmentApi) load(ctx echo.Context, id string) (interface{}, string, error) {
	inst, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return nil, "", err
	}
	p, err := api.plans.Get(ctx.Request().Context(), inst.PlanID)
	if err != nil {
		if errors.Cause(err) == plan.ErrNotFound {
			return nil, "", installment.ErrNotFound
		}
		return nil, "", errors.Wrap(err, "getting installment plan")
	}
	return inst, p.GroupID, nil
}

func contextInstallment(ctx echo.Context) (installment.Installment, error) {
	inst, ok := ctx.Get(contextObjectKey).(installment.Installment)
	if !ok {
		return installment.Installment{}, errors.Wrap(errObjNotFoundInCtx, "retrieving installment from context")
	}
	return inst, nil
}

// Handlers

func (api *installmentApi) retrieve(ctx echo.Context) error {
	inst, err := contextInstallment(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *installmentApi) pay(ctx echo.Context) error {
	inst, err := contextInstallment(ctx)
	if err != nil {
		return err
	}

	var data installment.UpdatePayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayment")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	if inst, err = api.svc.Pay(ctx.Request().Context(), inst.ID, data); err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *installmentApi) destroy(ctx echo.Context) error {
	inst, err := contextInstallment(ctx)
	if err != nil {
		return err
	}
	res, err := api.deletion.Delete(ctx.Request().Context(), deletion.EntityInstallment, inst.ID, false)
	if err != nil {
		return errors.Wrap(err, "deleting installment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *installmentApi) deletionCheck(ctx echo.Context) error {
	inst, err := contextInstallment(ctx)
	if err != nil {
		return err
	}
	chk, err := api.deletion.Check(ctx.Request().Context(), deletion.EntityInstallment, inst.ID)
	if err != nil {
		return errors.Wrap(err, "checking installment deletion")
	}
	return ctx.JSON(http.StatusOK, chk)
}
