package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-management/internal/api/middleware"
	"github.com/99minutos/user-management/internal/core/domain"
)

// ctxActor returns the user injected by the Auth middleware. A missing actor
// means the route was mounted without Auth.
func ctxActor(c echo.Context) (*domain.User, error) {
	actor := middleware.Actor(c)
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	return actor, nil
}

// pathID parses the :id route parameter as a positive user id.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "id must be a positive integer")
	}
	return id, nil
}
