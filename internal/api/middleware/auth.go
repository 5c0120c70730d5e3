package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-management/internal/api/metrics"
	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

// ContextKeyActor is the echo context key holding the authenticated *domain.User.
const ContextKeyActor = "actor"

// Auth verifies the bearer token, resolves its subject against the tenant's
// store and rejects inactive accounts. The resolved user is stored under
// ContextKeyActor. Failures are returned as domain errors so the central
// error handler picks the status code.
func Auth(verifier ports.TokenVerifier, resolver ports.IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				metrics.AuthFailuresTotal.WithLabelValues("missing").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				metrics.AuthFailuresTotal.WithLabelValues("missing").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
				return domain.ErrInvalidToken
			}

			user, err := resolver.Resolve(c.Request().Context(), claims)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrInvalidToken):
					metrics.AuthFailuresTotal.WithLabelValues("wrong_tenant").Inc()
				case errors.Is(err, domain.ErrUnauthorized):
					metrics.AuthFailuresTotal.WithLabelValues("unknown_subject").Inc()
				}
				return err
			}

			active, err := resolver.RequireActive(user)
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("inactive").Inc()
				return err
			}

			c.Set(ContextKeyActor, active)
			return next(c)
		}
	}
}

// Actor returns the user stored by Auth, or nil when the route is public.
func Actor(c echo.Context) *domain.User {
	u, _ := c.Get(ContextKeyActor).(*domain.User)
	return u
}
