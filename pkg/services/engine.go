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
	"github.com/tasklane/tasklane/pkg/otelhelper"
	"github.com/tasklane/tasklane/pkg/permissions"
	"github.com/tasklane/tasklane/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TransitionRef selects the transition to apply, either by identifier or by
// symbolic key resolved against the task's current status. Exactly one side
// is set; both constructors keep the invariant at the boundary.
type TransitionRef struct {
	id  string
	key string
}

// TransitionByID references a transition by its identifier.
func TransitionByID(id string) TransitionRef {
	return TransitionRef{id: id}
}

// TransitionByKey references a transition by its symbolic key.
func TransitionByKey(key string) TransitionRef {
	return TransitionRef{key: key}
}

func (r TransitionRef) violations() []string {
	if r.id == "" && r.key == "" {
		return []string{"one of transition_id or transition_key is required"}
	}

	if r.id != "" && r.key != "" {
		return []string{"transition_id and transition_key are mutually exclusive"}
	}

	return nil
}

// PerformRequest is one transition execution request.
type PerformRequest struct {
	TaskID   string
	Ref      TransitionRef
	UserID   string
	Metadata map[string]any
}

// TransitionResult is returned for a committed transition.
type TransitionResult struct {
	Task          *models.Task       `json:"task"`
	Transition    *models.Transition `json:"transition"`
	AuditRecordID string             `json:"audit_record_id"`
}

// TransitionEngine executes one workflow transition for one task as an
// atomic, permission-checked, audited operation. The engine is stateless
// between calls; all durable state lives in the persistence layer.
//
// The workflow graph is read once per call. Workflow definitions are
// immutable after creation, so an edge resolved here cannot disappear before
// the conditional update commits; the optimistic check on (status, version)
// alone is sufficient to reject every stale assumption about the task.
type TransitionEngine struct {
	persistence persistence.Persistence
	oracle      permissions.Oracle
	guards      *guards.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewTransitionEngine creates a transition engine. The event bus and tracer
// may be nil; events are then skipped and the global (no-op by default)
// tracer provider is used.
func NewTransitionEngine(
	p persistence.Persistence,
	oracle permissions.Oracle,
	registry *guards.Registry,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *TransitionEngine {
	if tracer == nil {
		tracer = otel.Tracer("tasklane/engine")
	}

	return &TransitionEngine{
		persistence: p,
		oracle:      oracle,
		guards:      registry,
		eventBus:    bus,
		tracer:      tracer,
		logger:      logger.With("module", "transition_engine"),
	}
}

// Perform executes one transition: load, resolve, authorize, evaluate
// guards, conditionally apply with the audit insert in the same atomic unit,
// publish. Every failure is returned as a typed error and nothing is
// mutated before the atomic apply; no failure is retried internally.
// ConcurrentModification means the caller may re-read and resubmit.
func (e *TransitionEngine) Perform(ctx context.Context, req PerformRequest) (*TransitionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "transition.perform",
		attribute.String(otelhelper.TaskIDKey, req.TaskID),
		attribute.String(otelhelper.UserIDKey, req.UserID),
	)
	defer span.End()

	result, err := e.perform(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.TransitionIDKey, result.Transition.ID),
		attribute.String(otelhelper.StatusIDKey, result.Task.StatusID),
	)

	return result, nil
}

func (e *TransitionEngine) perform(ctx context.Context, req PerformRequest) (*TransitionResult, error) {
	var violations []string

	if req.TaskID == "" {
		violations = append(violations, "task id is required")
	}

	if req.UserID == "" {
		violations = append(violations, "user id is required")
	}

	violations = append(violations, req.Ref.violations()...)

	if len(violations) > 0 {
		return nil, NewValidationError("PerformTransition", violations)
	}

	task, err := e.persistence.TaskRepository().GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, task.WorkflowID)
	if err != nil {
		return nil, err
	}

	transition, err := e.resolve(workflow, task, req.Ref)
	if err != nil {
		return nil, err
	}

	if err := e.authorize(ctx, task, transition, req.UserID); err != nil {
		return nil, err
	}

	reasons, err := e.guards.Evaluate(ctx, transition.Guards, task)
	if err != nil {
		return nil, fmt.Errorf("guard evaluation failed: %w", err)
	}

	if len(reasons) > 0 {
		return nil, &GuardError{TransitionKey: transition.Key, Reasons: reasons}
	}

	toStatus := workflow.StatusByID(transition.ToStatusID)
	if toStatus == nil {
		return nil, persistence.NewWorkflowError("PerformTransition", workflow.ID,
			fmt.Errorf("transition %s targets unknown status %s", transition.ID, transition.ToStatusID))
	}

	auditID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audit record ID: %w", err)
	}

	audit := &models.AuditRecord{
		ID:           auditID.String(),
		TaskID:       task.ID,
		UserID:       req.UserID,
		FromStatusID: task.StatusID,
		ToStatusID:   transition.ToStatusID,
		TransitionID: transition.ID,
		Metadata:     req.Metadata,
		CreatedAt:    time.Now().UTC(),
	}

	updated, err := e.persistence.TaskRepository().ApplyTransition(ctx, persistence.TransitionApply{
		Task:       task,
		ToStatusID: transition.ToStatusID,
		MarkDone:   toStatus.IsDone,
		Audit:      audit,
	})
	if err != nil {
		return nil, err
	}

	e.publishApplied(ctx, updated, transition, audit)

	return &TransitionResult{
		Task:          updated,
		Transition:    transition,
		AuditRecordID: audit.ID,
	}, nil
}

// resolve maps a TransitionRef onto an edge legal from the task's current
// status. An edge that exists but does not originate at the current status
// is reported the same way as a missing one: the move is illegal.
func (e *TransitionEngine) resolve(workflow *models.Workflow, task *models.Task, ref TransitionRef) (*models.Transition, error) {
	if ref.id != "" {
		transition := workflow.TransitionByID(ref.id)
		if transition == nil {
			return nil, fmt.Errorf("transition %s in workflow %s: %w", ref.id, workflow.ID, ErrTransitionNotFound)
		}

		if !transition.Universal && transition.FromStatusID != task.StatusID {
			return nil, fmt.Errorf("transition %s is not legal from status %s: %w", ref.id, task.StatusID, ErrTransitionNotFound)
		}

		return transition, nil
	}

	transition := workflow.ResolveTransitionKey(task.StatusID, ref.key)
	if transition == nil {
		return nil, fmt.Errorf("transition %q from status %s: %w", ref.key, task.StatusID, ErrTransitionNotFound)
	}

	return transition, nil
}

// authorize enforces the transition's permission requirements. A space admin
// satisfies any permission; universal transitions always require admin.
func (e *TransitionEngine) authorize(ctx context.Context, task *models.Task, transition *models.Transition, userID string) error {
	admin, err := e.oracle.IsSpaceAdmin(ctx, userID, task.SpaceID)
	if err != nil {
		return fmt.Errorf("failed to check space admin: %w", err)
	}

	if admin {
		return nil
	}

	if transition.Universal {
		return &PermissionError{UserID: userID}
	}

	if transition.Permission == "" {
		return nil
	}

	allowed, err := e.oracle.HasPermission(ctx, userID, task.SpaceID, transition.Permission)
	if err != nil {
		return fmt.Errorf("failed to check permission: %w", err)
	}

	if !allowed {
		return &PermissionError{UserID: userID, Permission: transition.Permission}
	}

	return nil
}

// Available returns the transitions the given user may attempt from the
// task's current status: ordinary outgoing edges filtered by permission,
// plus universal edges for space admins.
func (e *TransitionEngine) Available(ctx context.Context, taskID, userID string) ([]*models.Transition, error) {
	task, err := e.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, task.WorkflowID)
	if err != nil {
		return nil, err
	}

	admin, err := e.oracle.IsSpaceAdmin(ctx, userID, task.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check space admin: %w", err)
	}

	available := make([]*models.Transition, 0)

	for _, transition := range workflow.TransitionsFrom(task.StatusID) {
		if !admin && transition.Permission != "" {
			allowed, err := e.oracle.HasPermission(ctx, userID, task.SpaceID, transition.Permission)
			if err != nil {
				return nil, fmt.Errorf("failed to check permission: %w", err)
			}

			if !allowed {
				continue
			}
		}

		available = append(available, transition)
	}

	if admin {
		available = append(available, workflow.UniversalTransitions()...)
	}

	return available, nil
}

func (e *TransitionEngine) publishApplied(ctx context.Context, task *models.Task, transition *models.Transition, audit *models.AuditRecord) {
	if e.eventBus == nil {
		return
	}

	event := events.TaskTransitionApplied{
		BaseEvent:     events.NewBaseEvent(events.TaskTransitionAppliedEvent, task.SpaceID),
		TaskID:        task.ID,
		WorkflowID:    task.WorkflowID,
		TransitionID:  transition.ID,
		TransitionKey: transition.Key,
		FromStatusID:  audit.FromStatusID,
		ToStatusID:    audit.ToStatusID,
		ActorID:       audit.UserID,
		AuditRecordID: audit.ID,
	}

	// The transition is already durable; a publish failure is logged, never
	// propagated, and never rolls anything back.
	if err := e.eventBus.Publish(ctx, task.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish transition event", "task_id", task.ID, "error", err)
	}
}
