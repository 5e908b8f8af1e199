package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// TaskRepository handles task-related database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `
	id
  , space_id
  , workflow_id
  , status_id
  , version
  , title
  , assignee
  , due_date
  , completed_at
  , fields
  , template_id
  , created_at
  , updated_at
`

func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	fieldsJSON, err := json.Marshal(task.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
		INSERT INTO tasks (id, space_id, workflow_id, status_id, version,
title, assignee, due_date, completed_at, fields, template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			assignee = EXCLUDED.assignee,
			due_date = EXCLUDED.due_date,
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at
	`

	// Note: status_id, version and completed_at are deliberately absent from
	// the update set. Those columns change only through ApplyTransition.
	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.SpaceID,
		task.WorkflowID,
		task.StatusID,
		task.Version,
		task.Title,
		nullableString(task.Assignee),
		task.DueDate,
		task.CompletedAt,
		fieldsJSON,
		nullableString(task.TemplateID),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return persistence.NewTaskError("Save", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := r.scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTaskError("GetByID", id, persistence.ErrTaskNotFound)
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

func (r *TaskRepository) ListBySpace(ctx context.Context, spaceID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE space_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepository) CountByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	var count int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE workflow_id = $1", workflowID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	return count, nil
}

// ApplyTransition performs the atomic transition commit: a conditional
// UPDATE keyed on the previously-read status and version, plus the audit
// insert, in a single transaction. Zero affected rows means another
// transition won the race and the whole unit rolls back.
func (r *TaskRepository) ApplyTransition(ctx context.Context, apply persistence.TransitionApply) (*models.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var completedAt any
	if apply.MarkDone {
		completedAt = now
	}

	updateQuery := `
		UPDATE tasks
		SET status_id = $1, version = version + 1, completed_at = $2, updated_at = $3
		WHERE id = $4 AND status_id = $5 AND version = $6
	`

	result, err := tx.ExecContext(ctx, updateQuery,
		apply.ToStatusID,
		completedAt,
		now,
		apply.Task.ID,
		apply.Task.StatusID,
		apply.Task.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = persistence.NewTaskError("ApplyTransition", apply.Task.ID, persistence.ErrConcurrentModification)

		return nil, err
	}

	var metadataJSON []byte

	if len(apply.Audit.Metadata) > 0 {
		metadataJSON, err = json.Marshal(apply.Audit.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	auditQuery := `
		INSERT INTO task_audit (id, task_id, user_id, from_status_id, to_status_id, transition_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx, auditQuery,
		apply.Audit.ID,
		apply.Audit.TaskID,
		apply.Audit.UserID,
		apply.Audit.FromStatusID,
		apply.Audit.ToStatusID,
		apply.Audit.TransitionID,
		metadataJSON,
		apply.Audit.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit record: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.GetByID(ctx, apply.Task.ID)
}

func (r *TaskRepository) scanTask(scanner interface {
	Scan(dest ...any) error
}) (*models.Task, error) {
	var (
		task       models.Task
		assignee   sql.NullString
		templateID sql.NullString
		dueDate    sql.NullTime
		completed  sql.NullTime
		fieldsJSON []byte
	)

	err := scanner.Scan(
		&task.ID,
		&task.SpaceID,
		&task.WorkflowID,
		&task.StatusID,
		&task.Version,
		&task.Title,
		&assignee,
		&dueDate,
		&completed,
		&fieldsJSON,
		&templateID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Assignee = assignee.String
	task.TemplateID = templateID.String

	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}

	if completed.Valid {
		task.CompletedAt = &completed.Time
	}

	if fieldsJSON != nil {
		err := json.Unmarshal(fieldsJSON, &task.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
	}

	return &task, nil
}
