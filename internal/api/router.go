package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/99minutos/user-management/docs"
	"github.com/99minutos/user-management/internal/api/handler"
	"github.com/99minutos/user-management/internal/api/middleware"
	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

// Tenant is one user table with its services.
type Tenant struct {
	Name     string
	Users    ports.UserService
	Identity ports.IdentityResolver
}

// Deps carries everything the router wires into handlers. Audit, Mongo and
// Redis are nil when not configured.
type Deps struct {
	Log           zerolog.Logger
	ServiceName   string
	Verifier      ports.TokenVerifier
	Tenants       []Tenant
	DefaultTenant string
	Audit         ports.AuditRepository
	Postgres      handler.Pinger
	Mongo         *mongo.Database
	Redis         *redis.Client

	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// default Prometheus registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
//
// Every tenant is mounted at /api/<tenant>; the default tenant is also
// mounted at /api.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "user_management",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/metrics" || strings.HasPrefix(p, "/health") || strings.HasPrefix(p, "/swagger")
		},
	}))

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler(d.ServiceName)
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Postgres, d.Mongo, d.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Tenant routes ---
	for _, t := range d.Tenants {
		registerTenant(e.Group("/api/"+t.Name), t, d)
		if t.Name == d.DefaultTenant {
			registerTenant(e.Group("/api"), t, d)
		}
	}

	return e
}

func registerTenant(g *echo.Group, t Tenant, d Deps) {
	users := handler.NewUserHandler(t.Users, t.Name)
	auth := middleware.Auth(d.Verifier, t.Identity)

	g.POST("/users", users.Create)
	g.GET("/users", users.List, auth)
	g.GET("/users/me", users.Me, auth)
	g.PUT("/users/me", users.UpdateMe, auth)
	g.GET("/users/:id", users.Get, auth)
	g.DELETE("/users/:id", users.Delete, auth)
	g.PATCH("/users/:id/role", users.ChangeRole, auth)
	g.GET("/users/:id/permissions", users.Permissions, auth)

	audit := handler.NewAuditHandler(d.Audit, t.Name)
	g.GET("/audit", audit.Recent, auth, middleware.RBAC(domain.RoleAdmin))
}

// requestLogger writes one zerolog entry per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				evt = log.Error().Err(v.Error)
			case v.Status >= http.StatusBadRequest:
				evt = log.Warn()
			}
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("remote_ip", v.RemoteIP).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}
