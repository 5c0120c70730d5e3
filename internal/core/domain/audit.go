package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a user-lifecycle change recorded in the audit trail.
type AuditAction string

const (
	AuditUserCreated     AuditAction = "user_created"
	AuditUserUpdated     AuditAction = "user_updated"
	AuditUserDeleted     AuditAction = "user_deleted"
	AuditUserRoleChanged AuditAction = "user_role_changed"
)

// AuditEvent records one successful mutation. ActorID is zero for
// self-registration.
type AuditEvent struct {
	ID         string      `json:"id"`
	Tenant     string      `json:"tenant"`
	Action     AuditAction `json:"action"`
	ActorID    int64       `json:"actor_id,omitempty"`
	TargetID   int64       `json:"target_id"`
	Detail     string      `json:"detail,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewAuditEvent stamps a fresh event with a random ID.
func NewAuditEvent(tenant string, action AuditAction, actorID, targetID int64, detail string, at time.Time) AuditEvent {
	return AuditEvent{
		ID:         uuid.NewString(),
		Tenant:     tenant,
		Action:     action,
		ActorID:    actorID,
		TargetID:   targetID,
		Detail:     detail,
		OccurredAt: at.UTC(),
	}
}

// PendingAuditEvent is an event whose delivery failed and waits for a replay.
// Parks counts how many times it has been set aside.
type PendingAuditEvent struct {
	Event AuditEvent `json:"event"`
	Parks int        `json:"parks"`
}
