// Package main User Management API
//
// @title           User Management API
// @version         1.0
// @description     Multi-tenant user accounts with role-based access control.
//
// @host      localhost:8080
// @BasePath  /api
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/api"
	"github.com/99minutos/user-management/internal/core/ports"
	"github.com/99minutos/user-management/internal/core/service"
	"github.com/99minutos/user-management/internal/infrastructure/config"
	mongodb "github.com/99minutos/user-management/internal/infrastructure/db/mongo"
	"github.com/99minutos/user-management/internal/infrastructure/db/postgres"
	redisdb "github.com/99minutos/user-management/internal/infrastructure/db/redis"
	"github.com/99minutos/user-management/internal/infrastructure/queue"
	"github.com/99minutos/user-management/pkg/logger"
)

const (
	serviceName     = "user-management"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := postgres.Connect(ctx, postgres.Config{
		DSN:          cfg.Postgres.DSN(),
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := prepareSchema(ctx, cfg, db, log); err != nil {
		return err
	}

	deps := api.Deps{
		Log:           logger.Component("http"),
		ServiceName:   serviceName,
		DefaultTenant: cfg.Tenants.Default,
		Postgres:      db,
	}

	// Audit trail: MongoDB store, async dispatcher, optional Redis retry store.
	var publisher ports.AuditPublisher = queue.Noop{}
	if cfg.AuditEnabled() {
		client, mdb, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  serviceName,
		})
		if err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}()

		auditRepo := mongodb.NewAuditRepository(mdb)
		if err := auditRepo.EnsureIndexes(ctx); err != nil {
			return err
		}
		deps.Audit = auditRepo
		deps.Mongo = mdb

		opts := []queue.Option{
			queue.WithRetryPolicy(cfg.Audit.MaxAttempts, cfg.Audit.RetryBackoff),
			queue.WithMaxParks(cfg.Audit.MaxParks),
		}
		if cfg.Redis.Addr != "" {
			rdb, err := redisdb.Connect(ctx, redisdb.Config{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				return err
			}
			defer rdb.Close()
			opts = append(opts, queue.WithRetryStore(redisdb.NewRetryStore(rdb, 0)))
			deps.Redis = rdb
		} else {
			log.Warn().Msg("REDIS_ADDR not set, failed audit events are dropped after retries")
		}

		dispatcher := queue.NewDispatcher(cfg.Audit.Workers,
			service.NewAuditService(auditRepo, logger.Component("audit")),
			logger.Component("dispatcher"), opts...)
		// The dispatcher outlives ctx so queued events drain on shutdown.
		dispatcher.Start(context.Background())
		defer dispatcher.Close()
		dispatcher.StartReplayer(ctx, cfg.Audit.ReplayInterval)
		publisher = dispatcher
	} else {
		log.Warn().Msg("MONGO_URI not set, audit trail disabled")
	}

	verifier, err := service.NewTokenVerifier(service.TokenConfig{
		Secret:    cfg.Auth.JWTSecret,
		Algorithm: cfg.Auth.JWTAlgorithm,
	}, nil)
	if err != nil {
		return err
	}
	deps.Verifier = verifier

	for _, name := range cfg.TenantNames() {
		repo, err := postgres.NewUserRepository(db, cfg.Tenants.Tables[name])
		if err != nil {
			return err
		}
		var scope []service.IdentityOption
		if name == cfg.Tenants.Default {
			scope = append(scope, service.AcceptUnscopedTokens())
		}
		deps.Tenants = append(deps.Tenants, api.Tenant{
			Name:     name,
			Users:    service.NewUserService(repo, publisher, name, logger.Component("users")),
			Identity: service.NewIdentityService(repo, name, scope...),
		})
	}

	e := api.NewRouter(deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Strs("tenants", cfg.TenantNames()).
			Bool("audit", cfg.AuditEnabled()).
			Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

// prepareSchema runs the embedded migrations and makes sure every configured
// tenant table exists.
func prepareSchema(ctx context.Context, cfg *config.Config, db *sql.DB, log zerolog.Logger) error {
	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("database migrations applied")
	}
	for _, name := range cfg.TenantNames() {
		if err := postgres.EnsureTable(ctx, db, cfg.Tenants.Tables[name]); err != nil {
			return err
		}
	}
	return nil
}
