package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

const uniqueViolation = "23505"

const userColumns = "id, email, username, password_hash, is_active, role, created_at, updated_at"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateTable rejects anything that is not a plain lower-case identifier.
// Table names are interpolated into SQL, so this is the only gate.
func ValidateTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// UserRepository implements ports.UserRepository over one tenant table.
type UserRepository struct {
	db    *sql.DB
	table string
}

// NewUserRepository binds a repository to table.
func NewUserRepository(db *sql.DB, table string) (*UserRepository, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	return &UserRepository{db: db, table: table}, nil
}

var _ ports.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", userColumns, r.table)
	return r.findOne(ctx, "postgres.FindByID", q, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE email = $1", userColumns, r.table)
	return r.findOne(ctx, "postgres.FindByEmail", q, email)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE username = $1", userColumns, r.table)
	return r.findOne(ctx, "postgres.FindByUsername", q, username)
}

func (r *UserRepository) findOne(ctx context.Context, op, query string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Insert stores u and fills in the generated id and created_at.
func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	const op = "postgres.Insert"

	q := fmt.Sprintf(`INSERT INTO %s (email, username, password_hash, is_active, role, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`, r.table)

	err := r.db.QueryRowContext(ctx, q,
		u.Email, u.Username, u.PasswordHash, u.IsActive, string(u.Role), u.CreatedAt,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return r.mapWriteErr(op, err)
	}
	return nil
}

// Update overwrites every mutable column of u.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	const op = "postgres.Update"

	q := fmt.Sprintf(`UPDATE %s SET email = $1, username = $2, password_hash = $3, is_active = $4, role = $5, updated_at = $6
WHERE id = $7`, r.table)

	var updatedAt sql.NullTime
	if u.UpdatedAt != nil {
		updatedAt = sql.NullTime{Time: *u.UpdatedAt, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, q,
		u.Email, u.Username, u.PasswordHash, u.IsActive, string(u.Role), updatedAt, u.ID,
	)
	if err != nil {
		return r.mapWriteErr(op, err)
	}
	return expectOneRow(op, res)
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	const op = "postgres.Delete"

	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(op, res)
}

// List returns users ordered by id.
func (r *UserRepository) List(ctx context.Context, skip, limit int) ([]*domain.User, error) {
	const op = "postgres.List"

	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT $1 OFFSET $2", userColumns, r.table)
	rows, err := r.db.QueryContext(ctx, q, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		role      string
		updatedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &role, &u.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if updatedAt.Valid {
		t := updatedAt.Time
		u.UpdatedAt = &t
	}
	return &u, nil
}

func expectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// mapWriteErr turns unique-constraint violations into the matching
// duplicate error. PostgreSQL names an inline UNIQUE constraint
// <table>_<column>_key; the "Key (<column>)=" detail is the fallback for names
// it had to truncate. Any other unique violation is passed through.
func (r *UserRepository) mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case pgErr.ConstraintName == r.table+"_email_key",
		strings.HasPrefix(pgErr.Detail, "Key (email)="):
		return domain.ErrDuplicateEmail
	case pgErr.ConstraintName == r.table+"_username_key",
		strings.HasPrefix(pgErr.Detail, "Key (username)="):
		return domain.ErrDuplicateUsername
	}
	return fmt.Errorf("%s: %w", op, err)
}
