package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler handles GET /health - liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct {
	service string
	now     func() time.Time
}

func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{service: service, now: time.Now}
}

type livenessResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp int64  `json:"timestamp"`
}

// Liveness godoc
//
// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  livenessResponse
// @Router   /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, livenessResponse{
		Status:    "ok",
		Service:   h.service,
		Timestamp: h.now().Unix(),
	})
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthDependenciesHandler handles GET /health/ready - readiness probe.
// PostgreSQL is required; MongoDB and Redis are checked only when configured.
type HealthDependenciesHandler struct {
	postgres Pinger
	mongo    *mongo.Database
	redis    *redis.Client
}

func NewHealthDependenciesHandler(pg Pinger, db *mongo.Database, rdb *redis.Client) *HealthDependenciesHandler {
	return &HealthDependenciesHandler{
		postgres: pg,
		mongo:    db,
		redis:    rdb,
	}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Readiness godoc
//
// @Summary  Readiness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  readinessResponse
// @Failure  503  {object}  readinessResponse
// @Router   /health/ready [get]
func (h *HealthDependenciesHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus)
	healthy := true

	check := func(name string, err error) {
		if err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			return
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	check("postgres", h.postgres.PingContext(ctx))

	if h.mongo != nil {
		check("mongodb", h.mongo.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err())
	}

	if h.redis != nil {
		check("redis", h.redis.Ping(ctx).Err())
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
