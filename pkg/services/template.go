package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// CreateTemplateInput describes a new task template. Workflow binding is a
// separate operation on the WorkflowService.
type CreateTemplateInput struct {
	Name     string         `json:"name" validate:"required,min=3"`
	Defaults map[string]any `json:"defaults,omitempty"`
}

// TemplateService manages task templates within a space.
type TemplateService struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewTemplateService creates a new template service.
func NewTemplateService(p persistence.Persistence, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		persistence: p,
		logger:      logger.With("module", "template_service"),
	}
}

// Create persists a new, unbound template.
func (s *TemplateService) Create(ctx context.Context, spaceID string, input CreateTemplateInput) (*models.TaskTemplate, error) {
	var violations []string

	if spaceID == "" {
		violations = append(violations, "space id is required")
	}

	if len(input.Name) < 3 {
		violations = append(violations, "name must be at least 3 characters")
	}

	if len(violations) > 0 {
		return nil, NewValidationError("CreateTemplate", violations)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate template ID: %w", err)
	}

	now := time.Now().UTC()

	template := &models.TaskTemplate{
		ID:        id.String(),
		SpaceID:   spaceID,
		Name:      input.Name,
		Defaults:  input.Defaults,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.persistence.TemplateRepository().Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	return template, nil
}

// FetchByID returns a template of the given space.
func (s *TemplateService) FetchByID(ctx context.Context, spaceID, templateID string) (*models.TaskTemplate, error) {
	template, err := s.persistence.TemplateRepository().GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if template.SpaceID != spaceID {
		return nil, ErrTemplateNotFound
	}

	return template, nil
}

// ListBySpace returns the templates of a space ordered by creation time.
func (s *TemplateService) ListBySpace(ctx context.Context, spaceID string) ([]*models.TaskTemplate, error) {
	return s.persistence.TemplateRepository().ListBySpace(ctx, spaceID)
}

// Delete removes a template. Existing tasks keep their workflow; only the
// seeding shortcut disappears.
func (s *TemplateService) Delete(ctx context.Context, spaceID, templateID string) error {
	if _, err := s.FetchByID(ctx, spaceID, templateID); err != nil {
		return err
	}

	return s.persistence.TemplateRepository().Delete(ctx, templateID)
}
