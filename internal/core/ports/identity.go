package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// TokenVerifier checks a bearer credential and returns its claims, or
// domain.ErrInvalidToken.
type TokenVerifier interface {
	Verify(token string) (domain.TokenClaims, error)
}

// IdentityResolver turns verified claims into the acting user.
type IdentityResolver interface {
	Resolve(ctx context.Context, claims domain.TokenClaims) (*domain.User, error)
	RequireActive(user *domain.User) (*domain.User, error)
}
