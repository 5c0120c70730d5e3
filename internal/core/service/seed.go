package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

// SeedPasswords are the initial passwords of the seeded accounts.
type SeedPasswords struct {
	Admin   string
	Manager string
	User    string
}

// SeedAccounts returns one admin, one manager and one regular account.
// prefix is prepended to every email and username so tenants sharing a
// mail domain do not collide.
func SeedAccounts(prefix string, pw SeedPasswords) []ports.CreateUserInput {
	return []ports.CreateUserInput{
		{Email: prefix + "admin@example.com", Username: prefix + "admin", Password: pw.Admin, Role: domain.RoleAdmin},
		{Email: prefix + "manager@example.com", Username: prefix + "manager", Password: pw.Manager, Role: domain.RoleManager},
		{Email: prefix + "user@example.com", Username: prefix + "testuser", Password: pw.User, Role: domain.RoleUser},
	}
}

// Seed creates each account that does not exist yet, matching by email.
// It returns the number of accounts created.
func Seed(ctx context.Context, users ports.UserService, repo ports.UserRepository, accounts []ports.CreateUserInput, log zerolog.Logger) (int, error) {
	created := 0
	for _, acc := range accounts {
		_, err := repo.FindByEmail(ctx, acc.Email)
		if err == nil {
			log.Info().Str("email", acc.Email).Msg("account already exists")
			continue
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return created, err
		}

		u, err := users.Create(ctx, acc)
		if err != nil {
			return created, err
		}
		created++
		log.Info().Int64("user_id", u.ID).Str("email", u.Email).Str("role", string(u.Role)).Msg("account created")
	}
	return created, nil
}
