package service

import (
	"context"
	"errors"
	"testing"

	"github.com/99minutos/user-management/internal/core/domain"
)

func TestIdentityService_Resolve(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(repo, 1, domain.RoleManager)
	svc := NewIdentityService(repo, "general", AcceptUnscopedTokens())

	user, err := svc.Resolve(context.Background(), domain.TokenClaims{UserID: 1})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if user.ID != 1 || user.Role != domain.RoleManager {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestIdentityService_Resolve_UnknownSubject(t *testing.T) {
	svc := NewIdentityService(newStubUserRepo(), "general", AcceptUnscopedTokens())

	_, err := svc.Resolve(context.Background(), domain.TokenClaims{UserID: 9})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("unknown subject must not surface as not-found")
	}
}

func TestIdentityService_Resolve_StoreError(t *testing.T) {
	repo := newStubUserRepo()
	boom := errors.New("db down")
	repo.findErr = boom

	_, err := NewIdentityService(repo, "general", AcceptUnscopedTokens()).Resolve(context.Background(), domain.TokenClaims{UserID: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestIdentityService_RequireActive(t *testing.T) {
	svc := NewIdentityService(newStubUserRepo(), "general", AcceptUnscopedTokens())

	active := &domain.User{ID: 1, IsActive: true}
	if got, err := svc.RequireActive(active); err != nil || got != active {
		t.Fatalf("active user rejected: %v", err)
	}
	if _, err := svc.RequireActive(&domain.User{ID: 2}); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
	if _, err := svc.RequireActive(nil); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount for nil, got %v", err)
	}
}

func TestIdentityService_Resolve_Audience(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(repo, 3, domain.RoleAdmin)

	general := NewIdentityService(repo, "general", AcceptUnscopedTokens())
	fresh := NewIdentityService(repo, "freshcart")

	tests := []struct {
		name     string
		svc      *IdentityService
		audience []string
		wantErr  bool
	}{
		{name: "unscoped on default tenant", svc: general},
		{name: "unscoped on other tenant", svc: fresh, wantErr: true},
		{name: "matching audience", svc: fresh, audience: []string{"freshcart"}},
		{name: "one of several audiences", svc: fresh, audience: []string{"general", "freshcart"}},
		{name: "foreign audience", svc: fresh, audience: []string{"general"}, wantErr: true},
		{name: "foreign audience on default tenant", svc: general, audience: []string{"freshcart"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo.finds = 0
			user, err := tc.svc.Resolve(context.Background(), domain.TokenClaims{UserID: 3, Audience: tc.audience})
			if !tc.wantErr {
				if err != nil || user == nil || user.ID != 3 {
					t.Fatalf("expected user 3, got %+v, %v", user, err)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
			if repo.finds != 0 {
				t.Fatalf("store must not be read for an out-of-scope token")
			}
		})
	}
}
