package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// UserRepository persists users. Finders return domain.ErrUserNotFound when
// nothing matches. Insert and Update translate unique-constraint violations
// into domain.ErrDuplicateEmail / domain.ErrDuplicateUsername.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// Insert stores u and fills in its ID and CreatedAt.
	Insert(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	// Delete removes the user permanently.
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, skip, limit int) ([]*domain.User, error)
}
