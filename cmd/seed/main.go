// Command seed creates an admin, a manager and a regular account in every
// configured tenant table. Accounts that already exist are left untouched.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/99minutos/user-management/internal/core/service"
	"github.com/99minutos/user-management/internal/infrastructure/config"
	"github.com/99minutos/user-management/internal/infrastructure/db/postgres"
	"github.com/99minutos/user-management/internal/infrastructure/queue"
	"github.com/99minutos/user-management/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "user-management-seed"})

	db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN()})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer db.Close()

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	pw := service.SeedPasswords{
		Admin:   cfg.Seed.AdminPassword,
		Manager: cfg.Seed.ManagerPassword,
		User:    cfg.Seed.UserPassword,
	}

	for _, tenant := range cfg.TenantNames() {
		table := cfg.Tenants.Tables[tenant]
		if err := postgres.EnsureTable(ctx, db, table); err != nil {
			log.Fatal().Err(err).Str("tenant", tenant).Msg("ensure table")
		}
		repo, err := postgres.NewUserRepository(db, table)
		if err != nil {
			log.Fatal().Err(err).Str("tenant", tenant).Msg("user repository")
		}

		prefix := ""
		if tenant != cfg.Tenants.Default {
			prefix = cfg.Seed.Prefixes[tenant]
		}

		tlog := log.With().Str("tenant", tenant).Logger()
		users := service.NewUserService(repo, queue.Noop{}, tenant, tlog)
		n, err := service.Seed(ctx, users, repo, service.SeedAccounts(prefix, pw), tlog)
		if err != nil {
			log.Fatal().Err(err).Str("tenant", tenant).Msg("seed")
		}
		tlog.Info().Int("created", n).Str("table", table).Msg("tenant seeded")
	}
}
