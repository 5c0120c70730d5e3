package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

// IdentityService maps verified token claims to a stored user of one tenant.
// It reads the store on every call; nothing is cached between requests.
type IdentityService struct {
	repo           ports.UserRepository
	tenant         string
	acceptUnscoped bool
}

// IdentityOption tunes an IdentityService.
type IdentityOption func(*IdentityService)

// AcceptUnscopedTokens lets tokens without an aud claim through. Only the
// default tenant is built with it.
func AcceptUnscopedTokens() IdentityOption {
	return func(s *IdentityService) { s.acceptUnscoped = true }
}

// NewIdentityService resolves subjects against repo, the store of tenant.
// A token must name tenant in its audience unless AcceptUnscopedTokens is set
// and the token has no audience at all.
func NewIdentityService(repo ports.UserRepository, tenant string, opts ...IdentityOption) *IdentityService {
	s := &IdentityService{repo: repo, tenant: tenant}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve loads the token subject. Tokens issued for another tenant are
// invalid; a subject that no longer exists is unauthorized rather than
// not-found; store failures pass through.
func (s *IdentityService) Resolve(ctx context.Context, claims domain.TokenClaims) (*domain.User, error) {
	if !s.inScope(claims.Audience) {
		return nil, fmt.Errorf("%w: token is not valid for tenant %q", domain.ErrInvalidToken, s.tenant)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrSubjectNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *IdentityService) inScope(audience []string) bool {
	if len(audience) == 0 {
		return s.acceptUnscoped
	}
	return slices.Contains(audience, s.tenant)
}

// RequireActive rejects deactivated accounts.
func (s *IdentityService) RequireActive(user *domain.User) (*domain.User, error) {
	if user == nil || !user.IsActive {
		return nil, domain.ErrInactiveAccount
	}
	return user, nil
}
