package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/user"
)

// authMiddleware is the request gate: it extracts the Bearer token, verifies
// it and resolves the live identity for the claimed (subject, role).
// A valid token whose subject no longer exists is rejected too: a deleted
// user must not retain access for the token's remaining lifetime.
func authMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return errNoToken
			}

			claims, err := verifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return err
			}

			usr, err := svc.GetByID(ctx.Request().Context(), claims.Role, claims.Subject)
			if err != nil {
				return errTokenFailed
			}
			if usr.Role != claims.Role {
				return errTokenFailed
			}

			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// roleMiddleware gates a route on the already-resolved role; it performs no
// I/O and can only forward or reject.
func roleMiddleware(allowed func(user.Role) bool, msg string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if allowed(usr.Role) {
				return next(ctx)
			}
			return echo.NewHTTPError(http.StatusForbidden, msg)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.Role.IsAdmin, "permission denied: admins only")
}

func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.Role.IsStaff, "permission denied: staff only")
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.Role.IsStudent, "permission denied: students only")
}

func staffOrAdminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(r user.Role) bool { return r.IsStaff() || r.IsAdmin() },
		"permission denied: staff or admins only")
}
