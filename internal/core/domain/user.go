package domain

import (
	"strings"
	"time"
)

// Role is the authorization tier of a user.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// IsValid reports whether r is one of the three known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole normalises s (case-insensitive) into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// AllRoles returns the roles from most to least privileged.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleUser}
}

// User models an account managed by the API.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// TokenClaims is what a verified bearer token asserts about its holder.
type TokenClaims struct {
	UserID    int64
	ExpiresAt time.Time
	// Audience lists the tenants the token was issued for. Empty means the
	// token is unscoped.
	Audience []string
}
