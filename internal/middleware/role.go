package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/reqcontext"
)

// RoleAdmin is required for all maintenance operations.
const RoleAdmin = "admin"

// RequireRole rejects requests whose resolved caller role does not match.
// Role resolution itself happens upstream (gateway sets the header); this
// keeps the reconciliation core free of session mechanics.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			callerRole := reqcontext.GetUserRole(c.Request().Context())
			if callerRole != role {
				return httperror.NewHTTPError(http.StatusForbidden, "caller role is not permitted to perform this operation")
			}
			return next(c)
		}
	}
}
