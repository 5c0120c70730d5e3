package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

var (
	errMissingFields = domain.NewKindError(domain.ErrBadRequest, "email, username and password are required")
	errEmptyEmail    = domain.NewKindError(domain.ErrBadRequest, "email cannot be empty")
	errEmptyUsername = domain.NewKindError(domain.ErrBadRequest, "username cannot be empty")
	errEmptyPassword = domain.NewKindError(domain.ErrBadRequest, "password cannot be empty")
)

// UserService implements registration, self-update, deletion and role
// changes for a single tenant's user table.
type UserService struct {
	repo     ports.UserRepository
	audit    ports.AuditPublisher
	tenant   string
	log      zerolog.Logger
	now      func() time.Time
	hashCost int
}

// UserServiceOption customises a UserService.
type UserServiceOption func(*UserService)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) UserServiceOption {
	return func(s *UserService) { s.now = now }
}

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) UserServiceOption {
	return func(s *UserService) { s.hashCost = cost }
}

// NewUserService wires a UserService. audit may be nil.
func NewUserService(repo ports.UserRepository, audit ports.AuditPublisher, tenant string, log zerolog.Logger, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:     repo,
		audit:    audit,
		tenant:   tenant,
		log:      log.With().Str("tenant", tenant).Logger(),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new active user. The email check runs before the
// username check; the repository's unique constraint covers the race
// between check and insert.
func (s *UserService) Create(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return nil, errMissingFields
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.IsValid() {
		return nil, domain.ErrInvalidRole
	}

	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}
	if err := s.ensureUsernameFree(ctx, username, 0); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.publish(domain.AuditUserCreated, 0, user.ID, "role="+string(role))
	s.log.Info().Int64("user_id", user.ID).Str("role", string(role)).Msg("user created")
	return user, nil
}

// UpdateSelf applies a partial update to the actor's own account. Any
// mention of a role is rejected before authorization is consulted.
func (s *UserService) UpdateSelf(ctx context.Context, actor *domain.User, in ports.UpdateSelfInput) (*domain.User, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	if in.RoleProvided {
		return nil, domain.ErrRoleInSelfUpdate
	}

	updated := *actor
	var changed []string

	if in.Email != nil && *in.Email != actor.Email {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return nil, errEmptyEmail
		}
		if err := s.ensureEmailFree(ctx, email, actor.ID); err != nil {
			return nil, err
		}
		updated.Email = email
		changed = append(changed, "email")
	}

	if in.Username != nil && *in.Username != actor.Username {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, errEmptyUsername
		}
		if err := s.ensureUsernameFree(ctx, username, actor.ID); err != nil {
			return nil, err
		}
		updated.Username = username
		changed = append(changed, "username")
	}

	if in.Password != nil {
		if *in.Password == "" {
			return nil, errEmptyPassword
		}
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
		changed = append(changed, "password")
	}

	if in.IsActive != nil && *in.IsActive != actor.IsActive {
		updated.IsActive = *in.IsActive
		changed = append(changed, "is_active")
	}

	if len(changed) == 0 {
		return &updated, nil
	}

	now := s.now().UTC()
	updated.UpdatedAt = &now
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	detail := "fields=" + strings.Join(changed, ",")
	s.publish(domain.AuditUserUpdated, actor.ID, actor.ID, detail)
	s.log.Info().Int64("user_id", actor.ID).Strs("fields", changed).Msg("user updated own profile")
	return &updated, nil
}

// Delete permanently removes targetID if the policy allows actor to.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, targetID int64) (*domain.User, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if d := domain.Authorize(actor, target, domain.OpDeleteUser); !d.Allow {
		s.log.Info().
			Int64("actor_id", actor.ID).
			Int64("target_id", target.ID).
			Str("reason", string(d.Reason)).
			Msg("delete denied")
		return nil, d.Err()
	}

	if err := s.repo.Delete(ctx, target.ID); err != nil {
		return nil, err
	}

	s.publish(domain.AuditUserDeleted, actor.ID, target.ID, "role="+string(target.Role))
	s.log.Info().Int64("actor_id", actor.ID).Int64("target_id", target.ID).Msg("user deleted")
	return target, nil
}

// ChangeRole sets targetID's role if the policy allows actor to. Any valid
// role is an acceptable destination for a permitted change.
func (s *UserService) ChangeRole(ctx context.Context, actor *domain.User, targetID int64, newRole domain.Role) (*domain.User, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !newRole.IsValid() {
		return nil, domain.ErrInvalidRole
	}

	if d := domain.Authorize(actor, target, domain.OpChangeRole); !d.Allow {
		s.log.Info().
			Int64("actor_id", actor.ID).
			Int64("target_id", target.ID).
			Str("reason", string(d.Reason)).
			Msg("role change denied")
		return nil, d.Err()
	}

	previous := target.Role
	now := s.now().UTC()
	target.Role = newRole
	target.UpdatedAt = &now
	if err := s.repo.Update(ctx, target); err != nil {
		return nil, err
	}

	s.publish(domain.AuditUserRoleChanged, actor.ID, target.ID, fmt.Sprintf("from=%s to=%s", previous, newRole))
	s.log.Info().
		Int64("actor_id", actor.ID).
		Int64("target_id", target.ID).
		Str("from", string(previous)).
		Str("to", string(newRole)).
		Msg("user role changed")
	return target, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// List pages through users ordered by id. limit defaults to and is capped at 100.
func (s *UserService) List(ctx context.Context, skip, limit int) ([]*domain.User, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, skip, limit)
}

// Permissions evaluates every operation for actor against targetID without
// performing any of them.
func (s *UserService) Permissions(ctx context.Context, actor *domain.User, targetID int64) (*ports.Permissions, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	out := &ports.Permissions{
		TargetID:  target.ID,
		Decisions: make(map[domain.Operation]domain.Decision, len(domain.Operations())),
	}
	for _, op := range domain.Operations() {
		out.Decisions[op] = domain.Authorize(actor, target, op)
	}
	return out, nil
}

// ensureEmailFree fails with ErrDuplicateEmail when another user (not selfID)
// already holds email.
func (s *UserService) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return domain.ErrDuplicateEmail
}

func (s *UserService) ensureUsernameFree(ctx context.Context, username string, selfID int64) error {
	existing, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return domain.ErrDuplicateUsername
}

func (s *UserService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.NewKindError(domain.ErrBadRequest, "password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *UserService) publish(action domain.AuditAction, actorID, targetID int64, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Publish(domain.NewAuditEvent(s.tenant, action, actorID, targetID, detail, s.now()))
}
