package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-management/internal/core/domain"
)

// RBAC restricts a route to actors holding one of allowedRoles. It must run
// after Auth. It gates whole routes only; per-target rules belong to the
// policy engine.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := Actor(c)
			if actor == nil {
				return domain.ErrUnauthorized
			}
			if _, ok := allowed[actor.Role]; !ok {
				return domain.NewKindError(domain.ErrForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}
