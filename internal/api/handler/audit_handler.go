package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-management/internal/core/ports"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditHandler exposes the audit trail of one tenant. repo is nil when no
// audit store is configured.
type AuditHandler struct {
	repo   ports.AuditRepository
	tenant string
}

func NewAuditHandler(repo ports.AuditRepository, tenant string) *AuditHandler {
	return &AuditHandler{repo: repo, tenant: tenant}
}

type auditQuery struct {
	Limit int `query:"limit" validate:"min=0,max=200"`
}

// Recent handles GET /audit.
//
// @Summary   Recent audit events
// @Tags      audit
// @Produce   json
// @Security  BearerAuth
// @Param     limit  query     int  false  "Max events (default 50, max 200)"
// @Success   200    {array}   auditEventResponse
// @Failure   401    {object}  map[string]string
// @Failure   403    {object}  map[string]string
// @Failure   503    {object}  map[string]string
// @Router    /audit [get]
func (h *AuditHandler) Recent(c echo.Context) error {
	if h.repo == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "audit trail is not configured")
	}

	var q auditQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "limit must be an integer")
	}
	if err := c.Validate(&q); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	events, err := h.repo.Recent(c.Request().Context(), h.tenant, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuditEventResponses(events))
}
