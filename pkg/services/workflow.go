package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tasklane/tasklane/pkg/events"
	"github.com/tasklane/tasklane/pkg/eventbus"
	"github.com/tasklane/tasklane/pkg/guards"
	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// StatusInput declares one status of a new workflow.
type StatusInput struct {
	Key       string `json:"key"        validate:"required"`
	Name      string `json:"name"       validate:"required"`
	Color     string `json:"color,omitempty"`
	IsInitial bool   `json:"is_initial"`
	IsDone    bool   `json:"is_done"`
}

// TransitionInput declares one edge of a new workflow by status keys.
type TransitionInput struct {
	Key        string             `json:"key"      validate:"required"`
	FromKey    string             `json:"from_key,omitempty"` // empty iff Universal
	ToKey      string             `json:"to_key"   validate:"required"`
	Universal  bool               `json:"universal"`
	Guards     []models.GuardSpec `json:"guards,omitempty"`
	Permission string             `json:"permission,omitempty"`
}

// CreateWorkflowInput is the definition submitted to Create.
type CreateWorkflowInput struct {
	Name        string            `json:"name"     validate:"required,min=3"`
	Statuses    []StatusInput     `json:"statuses" validate:"required,min=1"`
	Transitions []TransitionInput `json:"transitions"`
}

// WorkflowService is the workflow definition store: CRUD for space-scoped
// status/transition graphs, duplication, and template binding.
type WorkflowService struct {
	persistence persistence.Persistence
	guards      *guards.Registry
	eventBus    eventbus.EventBus
	logger      *slog.Logger
}

// NewWorkflowService creates a new workflow definition service. The event
// bus may be nil; creation events are then skipped.
func NewWorkflowService(p persistence.Persistence, registry *guards.Registry, bus eventbus.EventBus, logger *slog.Logger) *WorkflowService {
	return &WorkflowService{
		persistence: p,
		guards:      registry,
		eventBus:    bus,
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *WorkflowService) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and persists a new workflow graph. Validation aggregates
// every violation; nothing is written when any violation exists.
func (s *WorkflowService) Create(ctx context.Context, spaceID string, input CreateWorkflowInput, actorID string) (*models.Workflow, error) {
	violations := s.validateDefinition(spaceID, input)
	if len(violations) > 0 {
		return nil, NewValidationError("CreateWorkflow", violations)
	}

	workflow, err := s.buildWorkflow(spaceID, input, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.publishCreated(ctx, workflow, actorID)

	return workflow, nil
}

// List returns all workflows of a space with their full graphs, ordered by
// creation time.
func (s *WorkflowService) List(ctx context.Context, spaceID string) ([]*models.Workflow, error) {
	workflows, err := s.persistence.WorkflowRepository().ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID returns a workflow of the given space.
func (s *WorkflowService) FetchByID(ctx context.Context, spaceID, workflowID string) (*models.Workflow, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	// A workflow of another space is indistinguishable from an absent one.
	if workflow.SpaceID != spaceID {
		return nil, persistence.NewWorkflowError("FetchByID", workflowID, ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Duplicate deep-copies a workflow's graph into a new workflow of the same
// space: fresh identities, preserved keys and edge shape.
func (s *WorkflowService) Duplicate(ctx context.Context, spaceID, workflowID, actorID string) (*models.Workflow, error) {
	source, err := s.FetchByID(ctx, spaceID, workflowID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	copied := &models.Workflow{
		ID:        id.String(),
		SpaceID:   source.SpaceID,
		Name:      source.Name + " (copy)",
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}

	statusIDs := make(map[string]string, len(source.Statuses))

	for _, status := range source.Statuses {
		statusID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate status ID: %w", err)
		}

		statusIDs[status.ID] = statusID.String()

		copied.Statuses = append(copied.Statuses, &models.Status{
			ID:         statusID.String(),
			WorkflowID: copied.ID,
			Key:        status.Key,
			Name:       status.Name,
			Color:      status.Color,
			SortOrder:  status.SortOrder,
			IsInitial:  status.IsInitial,
			IsDone:     status.IsDone,
		})
	}

	for _, transition := range source.Transitions {
		transitionID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate transition ID: %w", err)
		}

		copiedTransition := &models.Transition{
			ID:         transitionID.String(),
			WorkflowID: copied.ID,
			ToStatusID: statusIDs[transition.ToStatusID],
			Key:        transition.Key,
			Universal:  transition.Universal,
			Guards:     append([]models.GuardSpec(nil), transition.Guards...),
			Permission: transition.Permission,
		}

		if !transition.Universal {
			copiedTransition.FromStatusID = statusIDs[transition.FromStatusID]
		}

		copied.Transitions = append(copied.Transitions, copiedTransition)
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, copied); err != nil {
		return nil, fmt.Errorf("failed to save duplicated workflow: %w", err)
	}

	s.publishCreated(ctx, copied, actorID)

	return copied, nil
}

// AssignToTemplate binds a workflow to a task template, or unbinds it when
// workflowID is empty. Tasks created from the template afterwards start at
// the bound workflow's initial status.
func (s *WorkflowService) AssignToTemplate(ctx context.Context, spaceID, templateID, workflowID string) (*models.TaskTemplate, error) {
	template, err := s.persistence.TemplateRepository().GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if template.SpaceID != spaceID {
		return nil, ErrTemplateNotFound
	}

	if workflowID != "" {
		workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
		if err != nil {
			return nil, err
		}

		if workflow.SpaceID != spaceID {
			return nil, NewValidationError("AssignToTemplate", []string{
				fmt.Sprintf("workflow %s belongs to a different space", workflowID),
			})
		}
	}

	template.WorkflowID = workflowID
	template.UpdatedAt = time.Now().UTC()

	if err := s.persistence.TemplateRepository().Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	return template, nil
}

// Delete removes a workflow. Deletion is rejected while any task still
// references one of the workflow's statuses.
func (s *WorkflowService) Delete(ctx context.Context, spaceID, workflowID string) error {
	if _, err := s.FetchByID(ctx, spaceID, workflowID); err != nil {
		return err
	}

	count, err := s.persistence.TaskRepository().CountByWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}

	if count > 0 {
		return persistence.NewWorkflowError("Delete", workflowID, ErrWorkflowInUse)
	}

	return s.persistence.WorkflowRepository().Delete(ctx, workflowID)
}

// validateDefinition collects every violation of the workflow definition rules.
func (s *WorkflowService) validateDefinition(spaceID string, input CreateWorkflowInput) []string {
	var violations []string

	if spaceID == "" {
		violations = append(violations, "space id is required")
	}

	if len(input.Name) < 3 {
		violations = append(violations, "name must be at least 3 characters")
	}

	if len(input.Statuses) == 0 {
		violations = append(violations, "workflow must declare at least one status")
	}

	statusKeys := make(map[string]bool, len(input.Statuses))
	initialCount := 0

	for i, status := range input.Statuses {
		if status.Key == "" {
			violations = append(violations, fmt.Sprintf("status %d has an empty key", i))

			continue
		}

		if statusKeys[status.Key] {
			violations = append(violations, fmt.Sprintf("duplicate status key %q", status.Key))
		}

		statusKeys[status.Key] = true

		if status.IsInitial {
			initialCount++
		}
	}

	// No status flagged initial means the first one becomes initial; more
	// than one is always a definition error.
	if initialCount > 1 {
		violations = append(violations, "at most one status may be flagged initial")
	}

	type edgeKey struct{ from, key string }

	edges := make(map[edgeKey]bool, len(input.Transitions))

	for i, transition := range input.Transitions {
		if transition.Key == "" {
			violations = append(violations, fmt.Sprintf("transition %d has an empty key", i))

			continue
		}

		if transition.Universal && transition.FromKey != "" {
			violations = append(violations, fmt.Sprintf("universal transition %q must not declare a from status", transition.Key))
		}

		if !transition.Universal {
			if transition.FromKey == "" {
				violations = append(violations, fmt.Sprintf("transition %q must declare a from status", transition.Key))
			} else if !statusKeys[transition.FromKey] {
				violations = append(violations, fmt.Sprintf("transition %q references undeclared status %q", transition.Key, transition.FromKey))
			}
		}

		if transition.ToKey == "" {
			violations = append(violations, fmt.Sprintf("transition %q must declare a to status", transition.Key))
		} else if !statusKeys[transition.ToKey] {
			violations = append(violations, fmt.Sprintf("transition %q references undeclared status %q", transition.Key, transition.ToKey))
		}

		edge := edgeKey{from: transition.FromKey, key: transition.Key}
		if edges[edge] {
			violations = append(violations, fmt.Sprintf("duplicate transition key %q from status %q", transition.Key, transition.FromKey))
		}

		edges[edge] = true

		for _, guard := range transition.Guards {
			if err := s.guards.ValidateSpec(guard); err != nil {
				violations = append(violations, fmt.Sprintf("transition %q: %s", transition.Key, err.Error()))
			}
		}
	}

	return violations
}

func (s *WorkflowService) buildWorkflow(spaceID string, input CreateWorkflowInput, actorID string) (*models.Workflow, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	workflow := &models.Workflow{
		ID:        id.String(),
		SpaceID:   spaceID,
		Name:      input.Name,
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}

	hasInitial := false

	for _, status := range input.Statuses {
		if status.IsInitial {
			hasInitial = true
		}
	}

	statusIDs := make(map[string]string, len(input.Statuses))

	for i, status := range input.Statuses {
		statusID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate status ID: %w", err)
		}

		statusIDs[status.Key] = statusID.String()

		workflow.Statuses = append(workflow.Statuses, &models.Status{
			ID:         statusID.String(),
			WorkflowID: workflow.ID,
			Key:        status.Key,
			Name:       status.Name,
			Color:      status.Color,
			SortOrder:  i,
			IsInitial:  status.IsInitial || (!hasInitial && i == 0),
			IsDone:     status.IsDone,
		})
	}

	for _, transition := range input.Transitions {
		transitionID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate transition ID: %w", err)
		}

		built := &models.Transition{
			ID:         transitionID.String(),
			WorkflowID: workflow.ID,
			ToStatusID: statusIDs[transition.ToKey],
			Key:        transition.Key,
			Universal:  transition.Universal,
			Guards:     transition.Guards,
			Permission: transition.Permission,
		}

		if !transition.Universal {
			built.FromStatusID = statusIDs[transition.FromKey]
		}

		workflow.Transitions = append(workflow.Transitions, built)
	}

	return workflow, nil
}

func (s *WorkflowService) publishCreated(ctx context.Context, workflow *models.Workflow, actorID string) {
	if s.eventBus == nil {
		return
	}

	event := events.WorkflowCreated{
		BaseEvent:    events.NewBaseEvent(events.WorkflowCreatedEvent, workflow.SpaceID),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		ActorID:      actorID,
	}

	if err := s.eventBus.Publish(ctx, workflow.SpaceID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish workflow created event", "workflow_id", workflow.ID, "error", err)
	}
}
