package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService writing to repo. The repository
// must treat a repeated event ID as already stored, since failed events are
// delivered again.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Process persists a single audit event.
func (s *auditService) Process(ctx context.Context, event domain.AuditEvent) error {
	if err := s.repo.InsertEvent(ctx, &event); err != nil {
		return fmt.Errorf("process audit event: %w", err)
	}

	s.log.Debug().
		Str("event_id", event.ID).
		Str("tenant", event.Tenant).
		Str("action", string(event.Action)).
		Int64("target_id", event.TargetID).
		Msg("audit event stored")
	return nil
}
