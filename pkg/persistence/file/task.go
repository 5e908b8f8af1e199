package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// TaskRepository handles task-related file operations.
type TaskRepository struct {
	root        string
	persistence *Persistence
}

func (r *TaskRepository) dir() string {
	return filepath.Join(r.root, "tasks")
}

func (r *TaskRepository) Save(_ context.Context, task *models.Task) error {
	if err := writeJSON(r.dir(), task.ID, task); err != nil {
		return persistence.NewTaskError("Save", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, id string) (*models.Task, error) {
	var task models.Task

	err := readJSON(r.dir(), id, &task)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewTaskError("GetByID", id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewTaskError("GetByID", id, err)
	}

	return &task, nil
}

func (r *TaskRepository) ListBySpace(ctx context.Context, spaceID string) ([]*models.Task, error) {
	ids, err := listIDs(r.dir())
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0)

	for _, id := range ids {
		task, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if task.SpaceID == spaceID {
			tasks = append(tasks, task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}

		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func (r *TaskRepository) CountByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	ids, err := listIDs(r.dir())
	if err != nil {
		return 0, err
	}

	var count int64

	for _, id := range ids {
		task, err := r.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}

		if task.WorkflowID == workflowID {
			count++
		}
	}

	return count, nil
}

// ApplyTransition commits a conditional status update plus its audit record.
// The store-wide mutex stands in for the SQL transaction: the re-read under
// the lock is the equivalent of the conditional UPDATE's WHERE clause.
func (r *TaskRepository) ApplyTransition(ctx context.Context, apply persistence.TransitionApply) (*models.Task, error) {
	r.persistence.applyMu.Lock()
	defer r.persistence.applyMu.Unlock()

	current, err := r.GetByID(ctx, apply.Task.ID)
	if err != nil {
		return nil, err
	}

	if current.StatusID != apply.Task.StatusID || current.Version != apply.Task.Version {
		return nil, persistence.NewTaskError("ApplyTransition", apply.Task.ID, persistence.ErrConcurrentModification)
	}

	now := time.Now().UTC()

	current.StatusID = apply.ToStatusID
	current.Version++
	current.UpdatedAt = now

	if apply.MarkDone {
		current.CompletedAt = &now
	} else {
		current.CompletedAt = nil
	}

	// The task write is the commit point. The audit record goes in first so a
	// committed status change is never missing its record; a failed task write
	// takes the record back out.
	if err := r.persistence.auditRepo.insert(apply.Audit); err != nil {
		return nil, persistence.NewTaskError("ApplyTransition", apply.Task.ID, err)
	}

	if err := r.Save(ctx, current); err != nil {
		_ = removeJSON(r.persistence.auditRepo.dir(), apply.Audit.ID)

		return nil, err
	}

	return current, nil
}
