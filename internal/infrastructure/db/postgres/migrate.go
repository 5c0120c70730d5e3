package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies the embedded schema migrations. It is a no-op when the
// schema is already current.
func Migrate(db *sql.DB) error {
	const op = "postgres.Migrate"

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx_v5", driver)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnsureTable creates a tenant table outside the migrated set. The
// user_role type must already exist.
func EnsureTable(ctx context.Context, db *sql.DB, table string) error {
	const op = "postgres.EnsureTable"

	if err := ValidateTable(table); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id            BIGSERIAL PRIMARY KEY,
	email         VARCHAR(255) NOT NULL UNIQUE,
	username      VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	role          user_role NOT NULL DEFAULT 'USER',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ
)`, table)

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%s: %s: %w", op, table, err)
	}
	return nil
}
