package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-management/internal/api/metrics"
	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

// UserHandler serves the user routes of one tenant.
type UserHandler struct {
	service ports.UserService
	tenant  string
}

func NewUserHandler(service ports.UserService, tenant string) *UserHandler {
	return &UserHandler{service: service, tenant: tenant}
}

// Create handles POST /users.
//
// @Summary      Register a user
// @Description  Public registration. Role defaults to USER.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "New user"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	var role domain.Role
	if req.Role != "" {
		role, _ = domain.ParseRole(req.Role)
	}

	user, err := h.service.Create(c.Request().Context(), ports.CreateUserInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		return err
	}

	metrics.UsersCreatedTotal.WithLabelValues(h.tenant, string(user.Role)).Inc()
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// List handles GET /users.
//
// @Summary   List users
// @Tags      users
// @Produce   json
// @Security  BearerAuth
// @Param     skip   query     int  false  "Rows to skip"  minimum(0)
// @Param     limit  query     int  false  "Page size (max 100)"  minimum(0)  maximum(100)
// @Success   200    {array}   userResponse
// @Failure   401    {object}  map[string]string
// @Router    /users [get]
func (h *UserHandler) List(c echo.Context) error {
	var q listUsersQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "skip and limit must be integers")
	}
	if err := c.Validate(&q); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	users, err := h.service.List(c.Request().Context(), q.Skip, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponses(users))
}

// Me handles GET /users/me.
//
// @Summary   Current user
// @Tags      users
// @Produce   json
// @Security  BearerAuth
// @Success   200  {object}  userResponse
// @Failure   401  {object}  map[string]string
// @Router    /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(actor))
}

// UpdateMe handles PUT /users/me.
//
// @Summary      Update own profile
// @Description  Partial update of email, username, password and is_active. Any role field is rejected.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateMeRequest  true  "Fields to change"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /users/me [put]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req updateMeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	roleProvided := len(req.Role) > 0
	if !roleProvided {
		if err := c.Validate(&req); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
	}

	user, err := h.service.UpdateSelf(c.Request().Context(), actor, ports.UpdateSelfInput{
		Email:        req.Email,
		Username:     req.Username,
		Password:     req.Password,
		IsActive:     req.IsActive,
		RoleProvided: roleProvided,
	})
	h.recordMutation("update_self", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// Get handles GET /users/:id.
//
// @Summary   Get a user by id
// @Tags      users
// @Produce   json
// @Security  BearerAuth
// @Param     id   path      int  true  "User id"
// @Success   200  {object}  userResponse
// @Failure   401  {object}  map[string]string
// @Failure   404  {object}  map[string]string
// @Router    /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// Delete handles DELETE /users/:id.
//
// @Summary      Delete a user
// @Description  ADMIN deletes anyone but self; MANAGER deletes non-admins but self; USER deletes no one.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  envelopeResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	deleted, err := h.service.Delete(c.Request().Context(), actor, id)
	h.recordMutation(string(domain.OpDeleteUser), err)
	if err != nil {
		return err
	}

	data := toUserResponse(deleted)
	return c.JSON(http.StatusOK, envelopeResponse{
		Success: true,
		Message: fmt.Sprintf("User with ID %d successfully deleted", id),
		Data:    &data,
	})
}

// ChangeRole handles PATCH /users/:id/role.
//
// @Summary      Change a user's role
// @Description  ADMIN only, never on self.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "User id"
// @Param        body  body      changeRoleRequest  true  "New role"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /users/{id}/role [patch]
func (h *UserHandler) ChangeRole(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req changeRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	role, _ := domain.ParseRole(req.Role)

	user, err := h.service.ChangeRole(c.Request().Context(), actor, id, role)
	h.recordMutation(string(domain.OpChangeRole), err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// Permissions handles GET /users/:id/permissions.
//
// @Summary      Dry-run authorization
// @Description  Evaluates every policy operation of the caller against the target without performing any.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  permissionsResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/{id}/permissions [get]
func (h *UserHandler) Permissions(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	p, err := h.service.Permissions(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}

	resp := permissionsResponse{TargetID: p.TargetID, Decisions: make(map[string]domain.Decision, len(p.Decisions))}
	for op, d := range p.Decisions {
		resp.Decisions[string(op)] = d
		metrics.PermissionChecksTotal.WithLabelValues(string(op), strconv.FormatBool(d.Allow)).Inc()
	}
	return c.JSON(http.StatusOK, resp)
}

// recordMutation counts the outcome of a mutating call. Policy outcomes of
// delete and role changes are also counted as decisions.
func (h *UserHandler) recordMutation(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrBadRequest):
		outcome = "denied"
	default:
		outcome = "error"
	}
	metrics.UserMutationsTotal.WithLabelValues(h.tenant, op, outcome).Inc()

	if op == string(domain.OpDeleteUser) || op == string(domain.OpChangeRole) {
		if outcome != "error" {
			metrics.PolicyDecisionsTotal.WithLabelValues(op, strconv.FormatBool(outcome == "ok")).Inc()
		}
	}
}
