package domain

import "errors"

// Error kinds. The HTTP layer maps each of these to a status code; callers
// match with errors.Is so derived errors keep their kind.
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInactiveAccount   = errors.New("inactive account")
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("a user with this email already exists")
	ErrDuplicateUsername = errors.New("a user with this username already exists")
	ErrBadRequest        = errors.New("bad request")
	ErrForbidden         = errors.New("forbidden")
)

// Derived errors with a specific message.
var (
	ErrSubjectNotFound  = NewKindError(ErrUnauthorized, "user not found")
	ErrRoleInSelfUpdate = NewKindError(ErrBadRequest, "role change not permitted via self-update")
	ErrInvalidRole      = NewKindError(ErrBadRequest, "role must be one of ADMIN, MANAGER, USER")
)

// KindError is an error with its own message that still matches its kind
// under errors.Is.
type KindError struct {
	kind error
	msg  string
}

// NewKindError returns an error reading msg whose kind is kind.
func NewKindError(kind error, msg string) *KindError {
	return &KindError{kind: kind, msg: msg}
}

func (e *KindError) Error() string { return e.msg }

func (e *KindError) Unwrap() error { return e.kind }
