package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/infrastructure/db/postgres"
)

const columns = "id, email, username, password_hash, is_active, role, created_at, updated_at"

var createdAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type testDependencies struct {
	repo    *postgres.UserRepository
	mock    sqlmock.Sqlmock
	cleanup func()
}

func setupTest(t *testing.T) *testDependencies {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Error mocking DB")

	repo, err := postgres.NewUserRepository(db, "users_general")
	require.NoError(t, err)

	return &testDependencies{
		repo: repo,
		mock: mock,
		cleanup: func() {
			assert.NoError(t, mock.ExpectationsWereMet(), "Expectations were not met")
			db.Close()
		},
	}
}

func userRows(mock sqlmock.Sqlmock, updatedAt any) *sqlmock.Rows {
	return mock.NewRows([]string{
		"id", "email", "username", "password_hash", "is_active", "role", "created_at", "updated_at",
	}).AddRow(1, "a@example.com", "alice", "hash", true, "MANAGER", createdAt, updatedAt)
}

func TestNewUserRepository_RejectsBadTable(t *testing.T) {
	for _, table := range []string{"", "Users", "users; DROP TABLE x", "1users", "users-general"} {
		_, err := postgres.NewUserRepository(nil, table)
		assert.Error(t, err, table)
	}
	for _, table := range []string{"users", "users_general", "_tmp2"} {
		_, err := postgres.NewUserRepository(nil, table)
		assert.NoError(t, err, table)
	}
}

func TestFindByID(t *testing.T) {
	t.Parallel()

	updated := createdAt.Add(time.Hour)
	testCases := []struct {
		name        string
		mockSetup   func(sqlmock.Sqlmock)
		wantErr     error
		wantUpdated bool
	}{
		{
			name: "Found",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("SELECT " + columns + " FROM users_general WHERE id = $1")).
					WithArgs(int64(1)).
					WillReturnRows(userRows(m, nil))
			},
		},
		{
			name: "Found with updated_at",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM users_general WHERE id = $1")).
					WithArgs(int64(1)).
					WillReturnRows(userRows(m, updated))
			},
			wantUpdated: true,
		},
		{
			name: "Not found",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM users_general WHERE id = $1")).
					WithArgs(int64(1)).
					WillReturnRows(m.NewRows([]string{"id"}))
			},
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			deps := setupTest(t)
			defer deps.cleanup()

			tc.mockSetup(deps.mock)
			user, err := deps.repo.FindByID(context.Background(), 1)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), user.ID)
			assert.Equal(t, domain.RoleManager, user.Role)
			assert.Equal(t, "alice", user.Username)
			assert.Equal(t, tc.wantUpdated, user.UpdatedAt != nil)
		})
	}
}

func TestFindByEmail_DatabaseError(t *testing.T) {
	deps := setupTest(t)
	defer deps.cleanup()

	deps.mock.ExpectQuery(regexp.QuoteMeta("FROM users_general WHERE email = $1")).
		WithArgs("a@example.com").
		WillReturnError(errors.New("db error"))

	_, err := deps.repo.FindByEmail(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)
	assert.Contains(t, err.Error(), "db error")
}

func TestFindByUsername(t *testing.T) {
	deps := setupTest(t)
	defer deps.cleanup()

	deps.mock.ExpectQuery(regexp.QuoteMeta("FROM users_general WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(userRows(deps.mock, nil))

	user, err := deps.repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestInsert(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		mockSetup func(sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "Success",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO users_general (email, username, password_hash, is_active, role, created_at)")).
					WithArgs("new@example.com", "newbie", "hash", true, "USER", sqlmock.AnyArg()).
					WillReturnRows(m.NewRows([]string{"id", "created_at"}).AddRow(7, createdAt))
			},
		},
		{
			name: "Duplicate email",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO users_general")).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_general_email_key"})
			},
			wantErr: domain.ErrDuplicateEmail,
		},
		{
			name: "Duplicate username",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("INSERT INTO users_general")).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_general_username_key"})
			},
			wantErr: domain.ErrDuplicateUsername,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			deps := setupTest(t)
			defer deps.cleanup()

			tc.mockSetup(deps.mock)
			u := &domain.User{
				Email: "new@example.com", Username: "newbie", PasswordHash: "hash",
				IsActive: true, Role: domain.RoleUser, CreatedAt: time.Now(),
			}
			err := deps.repo.Insert(context.Background(), u)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(7), u.ID)
			assert.True(t, u.CreatedAt.Equal(createdAt))
		})
	}
}

func TestInsert_OtherPgErrorIsWrapped(t *testing.T) {
	deps := setupTest(t)
	defer deps.cleanup()

	pgErr := &pgconn.PgError{Code: "23502", Message: "null value"}
	deps.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users_general")).WillReturnError(pgErr)

	err := deps.repo.Insert(context.Background(), &domain.User{Role: domain.RoleUser})
	var got *pgconn.PgError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "23502", got.Code)
}

func TestInsert_DuplicateColumnIgnoresTableName(t *testing.T) {
	testCases := []struct {
		name    string
		pgErr   *pgconn.PgError
		wantErr error
	}{
		{
			name:    "username constraint on a table named after email",
			pgErr:   &pgconn.PgError{Code: "23505", ConstraintName: "email_subscribers_username_key"},
			wantErr: domain.ErrDuplicateUsername,
		},
		{
			name:    "email constraint",
			pgErr:   &pgconn.PgError{Code: "23505", ConstraintName: "email_subscribers_email_key"},
			wantErr: domain.ErrDuplicateEmail,
		},
		{
			name:    "truncated constraint name falls back to detail",
			pgErr:   &pgconn.PgError{Code: "23505", ConstraintName: "email_subscribers_usern", Detail: "Key (username)=(bob) already exists."},
			wantErr: domain.ErrDuplicateUsername,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			repo, err := postgres.NewUserRepository(db, "email_subscribers")
			require.NoError(t, err)

			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO email_subscribers")).WillReturnError(tc.pgErr)
			err = repo.Insert(context.Background(), &domain.User{Email: "bob@example.com", Username: "bob", Role: domain.RoleUser})

			assert.ErrorIs(t, err, tc.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInsert_UnknownUniqueConstraintIsWrapped(t *testing.T) {
	deps := setupTest(t)
	defer deps.cleanup()

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_general_lower_idx", Detail: "Key (lower(email::text))=(a) already exists."}
	deps.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users_general")).WillReturnError(pgErr)

	err := deps.repo.Insert(context.Background(), &domain.User{Role: domain.RoleUser})
	assert.NotErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.NotErrorIs(t, err, domain.ErrDuplicateUsername)
	var got *pgconn.PgError
	require.ErrorAs(t, err, &got)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		mockSetup func(sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "Success",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("UPDATE users_general SET email = $1, username = $2")).
					WithArgs("a@example.com", "alice", "hash", true, "ADMIN", sqlmock.AnyArg(), int64(1)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "Missing row",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("UPDATE users_general")).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: domain.ErrUserNotFound,
		},
		{
			name: "Email taken",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("UPDATE users_general")).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_general_email_key"})
			},
			wantErr: domain.ErrDuplicateEmail,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			deps := setupTest(t)
			defer deps.cleanup()

			tc.mockSetup(deps.mock)
			now := time.Now()
			err := deps.repo.Update(context.Background(), &domain.User{
				ID: 1, Email: "a@example.com", Username: "alice", PasswordHash: "hash",
				IsActive: true, Role: domain.RoleAdmin, UpdatedAt: &now,
			})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDelete(t *testing.T) {
	deps := setupTest(t)
	defer deps.cleanup()

	deps.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users_general WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users_general WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, deps.repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, deps.repo.Delete(context.Background(), 4), domain.ErrUserNotFound)
}

func TestList(t *testing.T) {
	deps := setupTest(t)
	defer deps.cleanup()

	rows := deps.mock.NewRows([]string{
		"id", "email", "username", "password_hash", "is_active", "role", "created_at", "updated_at",
	}).
		AddRow(2, "b@example.com", "bob", "h", true, "USER", createdAt, nil).
		AddRow(3, "c@example.com", "carol", "h", false, "ADMIN", createdAt, nil)

	deps.mock.ExpectQuery(regexp.QuoteMeta("FROM users_general ORDER BY id LIMIT $1 OFFSET $2")).
		WithArgs(int64(10), int64(1)).
		WillReturnRows(rows)

	users, err := deps.repo.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(2), users[0].ID)
	assert.False(t, users[1].IsActive)
	assert.Equal(t, domain.RoleAdmin, users[1].Role)
}
