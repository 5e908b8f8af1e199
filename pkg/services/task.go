package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tasklane/tasklane/pkg/events"
	"github.com/tasklane/tasklane/pkg/eventbus"
	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// CreateTaskInput describes a new task. Either a template (whose bound
// workflow seeds the task) or an explicit workflow must be named.
type CreateTaskInput struct {
	Title      string         `json:"title"       validate:"required"`
	TemplateID string         `json:"template_id,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Assignee   string         `json:"assignee,omitempty"`
	DueDate    *time.Time     `json:"due_date,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// TaskService creates and reads tasks. Status changes are not here: a task's
// position on the graph moves only through the TransitionEngine.
type TaskService struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	logger      *slog.Logger
}

// NewTaskService creates a new task service. The event bus may be nil.
func NewTaskService(p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) *TaskService {
	return &TaskService{
		persistence: p,
		eventBus:    bus,
		logger:      logger.With("module", "task_service"),
	}
}

// Create validates the input, resolves the workflow (template binding wins
// over an explicit workflow id) and persists the task at the workflow's
// initial status with version zero.
func (s *TaskService) Create(ctx context.Context, spaceID string, input CreateTaskInput, actorID string) (*models.Task, error) {
	var violations []string

	if input.Title == "" {
		violations = append(violations, "title is required")
	}

	if input.TemplateID == "" && input.WorkflowID == "" {
		violations = append(violations, "either template_id or workflow_id is required")
	}

	if len(violations) > 0 {
		return nil, NewValidationError("CreateTask", violations)
	}

	workflowID := input.WorkflowID
	fields := input.Fields

	if input.TemplateID != "" {
		template, err := s.persistence.TemplateRepository().GetByID(ctx, input.TemplateID)
		if err != nil {
			return nil, err
		}

		if template.SpaceID != spaceID {
			return nil, ErrTemplateNotFound
		}

		if template.WorkflowID == "" {
			return nil, NewValidationError("CreateTask", []string{
				fmt.Sprintf("template %s has no workflow bound", template.ID),
			})
		}

		workflowID = template.WorkflowID
		fields = mergeDefaults(template.Defaults, fields)
	}

	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.SpaceID != spaceID {
		return nil, persistence.NewWorkflowError("CreateTask", workflowID, ErrWorkflowNotFound)
	}

	initial := workflow.InitialStatus()
	if initial == nil {
		return nil, fmt.Errorf("workflow %s has no initial status", workflow.ID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}

	now := time.Now().UTC()

	task := &models.Task{
		ID:         id.String(),
		SpaceID:    spaceID,
		WorkflowID: workflow.ID,
		StatusID:   initial.ID,
		Version:    0,
		Title:      input.Title,
		Assignee:   input.Assignee,
		DueDate:    input.DueDate,
		Fields:     fields,
		TemplateID: input.TemplateID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if s.eventBus != nil {
		event := events.TaskCreated{
			BaseEvent:  events.NewBaseEvent(events.TaskCreatedEvent, spaceID),
			TaskID:     task.ID,
			WorkflowID: task.WorkflowID,
			StatusID:   task.StatusID,
			ActorID:    actorID,
		}

		if err := s.eventBus.Publish(ctx, task.ID, event); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish task created event", "task_id", task.ID, "error", err)
		}
	}

	return task, nil
}

// FetchByID returns a task by its identifier.
func (s *TaskService) FetchByID(ctx context.Context, id string) (*models.Task, error) {
	return s.persistence.TaskRepository().GetByID(ctx, id)
}

// ListBySpace returns the tasks of a space ordered by creation time.
func (s *TaskService) ListBySpace(ctx context.Context, spaceID string) ([]*models.Task, error) {
	return s.persistence.TaskRepository().ListBySpace(ctx, spaceID)
}

// mergeDefaults overlays explicit fields on template defaults without
// mutating either map.
func mergeDefaults(defaults, fields map[string]any) map[string]any {
	if len(defaults) == 0 {
		return fields
	}

	merged := make(map[string]any, len(defaults)+len(fields))

	for key, value := range defaults {
		merged[key] = value
	}

	for key, value := range fields {
		merged[key] = value
	}

	return merged
}
