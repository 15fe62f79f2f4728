package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/group"
)

const (
	contextScopeKey  = "scope"
	contextObjectKey = "object"
)

func superAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsSuperAdmin {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// scopeMiddleware resolves the groups the authenticated administrator may reach.
func scopeMiddleware(svc *group.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			scope := core.Scope{AdministratorID: claims.Subject, IsSuperAdmin: claims.IsSuperAdmin}
			if !scope.IsSuperAdmin {
				if scope.GroupIDs, err = svc.AdministeredGroupIDs(ctx.Request().Context(), claims.Subject); err != nil {
					return errors.Wrap(err, "getting administered groups")
				}
			}
			ctx.Set(contextScopeKey, scope)
			return next(ctx)
		}
	}
}

func getContextScope(ctx echo.Context) core.Scope {
	if scope, ok := ctx.Get(contextScopeKey).(core.Scope); ok {
		return scope
	}
	// no scope resolved: reach nothing
	return core.Scope{GroupIDs: []string{}}
}

// objectMiddleware loads the object identified by the `id` path param and stores it in the context.
// Objects outside the administrator's scope are reported as not found.
func objectMiddleware(load func(ctx echo.Context, id string) (interface{}, string, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, groupID, err := load(ctx, ctx.Param("id"))
			if err != nil {
				return err
			}
			if !group.CanManage(getContextScope(ctx), groupID) {
				return errHttpNotFound
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}
