package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// CreateUserInput carries a registration request. An empty Role means USER.
type CreateUserInput struct {
	Email    string
	Username string
	Password string
	Role     domain.Role
}

// UpdateSelfInput carries a partial update of the caller's own account.
// Nil pointers leave the field untouched. RoleProvided is true whenever the
// payload mentioned a role at all, whatever its value.
type UpdateSelfInput struct {
	Email        *string
	Username     *string
	Password     *string
	IsActive     *bool
	RoleProvided bool
}

// Permissions is the dry-run answer for every operation on one target.
type Permissions struct {
	TargetID  int64                               `json:"target_id"`
	Decisions map[domain.Operation]domain.Decision `json:"decisions"`
}

// UserService defines the user-management use cases.
type UserService interface {
	Create(ctx context.Context, in CreateUserInput) (*domain.User, error)
	UpdateSelf(ctx context.Context, actor *domain.User, in UpdateSelfInput) (*domain.User, error)
	Delete(ctx context.Context, actor *domain.User, targetID int64) (*domain.User, error)
	ChangeRole(ctx context.Context, actor *domain.User, targetID int64, newRole domain.Role) (*domain.User, error)

	Get(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, skip, limit int) ([]*domain.User, error)
	Permissions(ctx context.Context, actor *domain.User, targetID int64) (*Permissions, error)
}
