package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "administrator not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	notFoundErrs = []error{
		admin.ErrNotFound,
		group.ErrNotFound,
		student.ErrNotFound,
		plan.ErrNotFound,
		installment.ErrNotFound,
		enrollment.ErrNotAssigned,
	}
)

type ruleErrorResponse struct {
	Error          string               `json:"error"`
	DependentItems []core.DependentItem `json:"dependent_items"`
}

func isNotFound(err error) bool {
	for _, nf := range notFoundErrs {
		if err == nf {
			return true
		}
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.RuleError:
			code = http.StatusConflict
			items := origErr.DependentItems
			if items == nil {
				items = []core.DependentItem{}
			}
			message = ruleErrorResponse{Error: origErr.Reason, DependentItems: items}
		default:
			if isNotFound(cause) {
				code = http.StatusNotFound
				message = cause.Error()
				break
			}
			if cause == deletion.ErrUnknownEntity {
				code = http.StatusBadRequest
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var adm admin.Administrator
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				adm.ID = claims.Subject
				adm.Name = claims.Name
				adm.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), adm)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
