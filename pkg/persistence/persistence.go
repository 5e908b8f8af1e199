// Package persistence provides the data storage abstraction layer for
// workflows, tasks, templates and the transition audit log.
package persistence

import (
	"context"
	"time"

	"github.com/tasklane/tasklane/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	TaskRepository() TaskRepository
	AuditRepository() AuditRepository
	TemplateRepository() TemplateRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definition graphs. Save persists the
// workflow together with its statuses and transitions as one unit.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListBySpace(ctx context.Context, spaceID string) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// TransitionApply is the atomic unit committed by the transition engine:
// a conditional status update keyed on the task's previously-read status and
// version, the done-timestamp side effect, and the audit insert. All of it
// commits together or not at all.
type TransitionApply struct {
	Task       *models.Task // as loaded by the engine; StatusID/Version are the condition
	ToStatusID string
	MarkDone   bool // target status carries IsDone: stamp CompletedAt, else clear it
	Audit      *models.AuditRecord
}

type TaskRepository interface {
	Save(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	ListBySpace(ctx context.Context, spaceID string) ([]*models.Task, error)
	CountByWorkflow(ctx context.Context, workflowID string) (int64, error)

	// ApplyTransition performs the conditional update. When the condition no
	// longer holds (another transition committed first) it fails with
	// ErrConcurrentModification and nothing is written, the audit record
	// included.
	ApplyTransition(ctx context.Context, apply TransitionApply) (*models.Task, error)
}

// AuditQueryOptions filters space-level audit reads.
type AuditQueryOptions struct {
	ActorID string
	Since   *time.Time
	Until   *time.Time
	Limit   int
}

// AuditRepository reads the append-only transition log. There is no insert,
// update or delete here: records enter storage only through
// TaskRepository.ApplyTransition.
type AuditRepository interface {
	ListByTask(ctx context.Context, taskID string) ([]*models.AuditRecord, error)
	ListBySpace(ctx context.Context, spaceID string, opts AuditQueryOptions) ([]*models.AuditRecord, error)
}

type TemplateRepository interface {
	Save(ctx context.Context, template *models.TaskTemplate) error
	GetByID(ctx context.Context, id string) (*models.TaskTemplate, error)
	ListBySpace(ctx context.Context, spaceID string) ([]*models.TaskTemplate, error)
	Delete(ctx context.Context, id string) error
}
