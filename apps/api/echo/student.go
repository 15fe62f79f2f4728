package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/student"
)

const fullEraseParam = "full_erase"

type studentApi struct {
	svc          *student.Service
	groups       *group.Service
	enrollment   *enrollment.Service
	installments *installment.Service
	deletion     *deletion.Service
}

func registerStudentAPI(g *echo.Group, jwt, scoped echo.MiddlewareFunc, opts *Options) {
	api := studentApi{
		svc:          opts.StudentSvc,
		groups:       opts.GroupSvc,
		enrollment:   opts.EnrollmentSvc,
		installments: opts.InstallmentSvc,
		deletion:     opts.DeletionSvc,
	}

	sg := g.Group("/students", jwt, scoped)
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.POST("/import", api.importRows)

	// detail endpoints
	dg := sg.Group("/:id", objectMiddleware(api.load))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/deletion-check", api.deletionCheck)
	dg.GET("/plan", api.currentPlan)
	dg.PUT("/plan", api.assignPlan)
	dg.DELETE("/plan", api.unassignPlan)
	dg.GET("/installments", api.installmentsList)
}

func (api *studentApi) load(ctx echo.Context, id string) (interface{}, string, error) {
	std, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return nil, "", err
	}
	return std, std.GroupID, nil
}

func contextStudent(ctx echo.Context) (student.Student, error) {
	std, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return student.Student{}, errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}
	return std, nil
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	filter.GroupIDs = getContextScope(ctx).GroupFilter()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	stds, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if stds == nil {
		stds = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, stds)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if err := checkGroupField(ctx, api.groups, data.GroupID); err != nil {
		return err
	}

	std, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) importRows(ctx echo.Context) error {
	var data student.Import
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Import")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if err := checkGroupField(ctx, api.groups, data.GroupID); err != nil {
		return err
	}

	res, err := api.svc.Import(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) update(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(std); err != nil {
		return err
	}
	if data.GroupID != std.GroupID {
		if err = checkGroupField(ctx, api.groups, data.GroupID); err != nil {
			return err
		}
	}

	if std, err = api.svc.Update(ctx.Request().Context(), std, data); err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	res, err := api.deletion.Delete(ctx.Request().Context(), deletion.EntityStudent, std.ID, boolQueryParam(ctx, fullEraseParam))
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) deletionCheck(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	chk, err := api.deletion.Check(ctx.Request().Context(), deletion.EntityStudent, std.ID)
	if err != nil {
		return errors.Wrap(err, "checking student deletion")
	}
	return ctx.JSON(http.StatusOK, chk)
}

func (api *studentApi) currentPlan(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	assoc, err := api.enrollment.Current(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "getting student plan")
	}
	return ctx.JSON(http.StatusOK, assoc)
}

func (api *studentApi) assignPlan(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	var data enrollment.AssignPlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignPlan")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	res, err := api.enrollment.Assign(ctx.Request().Context(), std.ID, data.PlanID)
	if err != nil {
		return errors.Wrap(err, "assigning plan")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) unassignPlan(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	if err = api.enrollment.Unassign(ctx.Request().Context(), std.ID); err != nil {
		return errors.Wrap(err, "unassigning plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) installmentsList(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	insts, err := api.installments.ListForStudent(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "listing student installments")
	}
	if insts == nil {
		insts = []installment.Installment{}
	}
	return ctx.JSON(http.StatusOK, insts)
}
