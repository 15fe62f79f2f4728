package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/report"
)

func registerReportAPI(g *echo.Group, jwt, scoped echo.MiddlewareFunc, svc *report.Service) {
	g.GET("/reports/summary", func(ctx echo.Context) error {
		summary, err := svc.Summary(ctx.Request().Context(), getContextScope(ctx), installment.NowFunc())
		if err != nil {
			return errors.Wrap(err, "computing summary")
		}
		return ctx.JSON(http.StatusOK, summary)
	}, jwt, scoped)
}
