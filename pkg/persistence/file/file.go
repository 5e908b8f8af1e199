// Package file provides file-based persistence for workflows, tasks,
// templates and audit records. It backs unit tests and local development;
// the conditional transition apply is serialized by a store-wide mutex so
// the optimistic-concurrency contract holds in-process.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/tasklane/tasklane/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a directory of
// JSON files.
type Persistence struct {
	root string

	// applyMu serializes ApplyTransition so two racing transitions observe
	// the same winner-takes-all behavior the SQL conditional update gives.
	applyMu sync.Mutex

	workflowRepo *WorkflowRepository
	taskRepo     *TaskRepository
	auditRepo    *AuditRepository
	templateRepo *TemplateRepository
}

// NewPersistence creates a file persistence layer rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{root: cleanRoot}
	p.auditRepo = &AuditRepository{root: cleanRoot}
	p.taskRepo = &TaskRepository{root: cleanRoot, persistence: p}
	p.templateRepo = &TemplateRepository{root: cleanRoot}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

func (p *Persistence) TemplateRepository() persistence.TemplateRepository {
	return p.templateRepo
}
