package services

import (
	"context"
	"log/slog"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// AuditService is the reporting read surface over the transition log. It
// never writes: audit records enter storage only inside the transition
// engine's atomic apply.
type AuditService struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewAuditService creates a new audit read service.
func NewAuditService(p persistence.Persistence, logger *slog.Logger) *AuditService {
	return &AuditService{
		persistence: p,
		logger:      logger.With("module", "audit_service"),
	}
}

// ListByTask returns the transition history of a task in chronological order.
// The task must exist; an empty history on a live task is an empty slice, not
// an error.
func (s *AuditService) ListByTask(ctx context.Context, taskID string) ([]*models.AuditRecord, error) {
	if _, err := s.persistence.TaskRepository().GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	return s.persistence.AuditRepository().ListByTask(ctx, taskID)
}

// ListBySpace returns the transition history across a space, optionally
// filtered by actor and time range.
func (s *AuditService) ListBySpace(ctx context.Context, spaceID string, opts persistence.AuditQueryOptions) ([]*models.AuditRecord, error) {
	return s.persistence.AuditRepository().ListBySpace(ctx, spaceID, opts)
}
