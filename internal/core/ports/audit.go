package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// AuditPublisher hands audit events to the asynchronous pipeline. Publish
// must not block the request for longer than a channel send.
type AuditPublisher interface {
	Publish(event domain.AuditEvent)
}

// AuditRepository persists the audit trail.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuditEvent) error
	// Recent returns the newest events of a tenant, newest first.
	Recent(ctx context.Context, tenant string, limit int) ([]*domain.AuditEvent, error)
}

// AuditService processes a single queued audit event.
type AuditService interface {
	Process(ctx context.Context, event domain.AuditEvent) error
}

// AuditRetryStore holds events that could not be stored so they can be
// replayed later.
type AuditRetryStore interface {
	Park(ctx context.Context, pending domain.PendingAuditEvent) error
	// Take removes and returns up to max parked events, oldest first.
	Take(ctx context.Context, max int) ([]domain.PendingAuditEvent, error)
}
