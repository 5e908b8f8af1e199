package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// WorkflowRepository handles workflow-definition database operations.
// Workflow graphs are write-once: Save inserts, never updates.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Save persists a workflow together with its statuses and transitions in one
// transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, space_id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.SpaceID,
		workflow.Name,
		workflow.CreatedBy,
		workflow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	statusQuery := `
		INSERT INTO workflow_statuses (id, workflow_id, key, name, color, sort_order, is_initial, is_done)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, status := range workflow.Statuses {
		_, err = tx.ExecContext(ctx, statusQuery,
			status.ID,
			workflow.ID,
			status.Key,
			status.Name,
			status.Color,
			status.SortOrder,
			status.IsInitial,
			status.IsDone,
		)
		if err != nil {
			return fmt.Errorf("failed to save status %s: %w", status.Key, err)
		}
	}

	transitionQuery := `
		INSERT INTO workflow_transitions (id, workflow_id, from_status_id, to_status_id, key, universal, guards, permission)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, transition := range workflow.Transitions {
		var guardsJSON []byte

		if len(transition.Guards) > 0 {
			guardsJSON, err = json.Marshal(transition.Guards)
			if err != nil {
				return fmt.Errorf("failed to marshal guards: %w", err)
			}
		}

		var fromStatusID any
		if !transition.Universal {
			fromStatusID = transition.FromStatusID
		}

		_, err = tx.ExecContext(ctx, transitionQuery,
			transition.ID,
			workflow.ID,
			fromStatusID,
			transition.ToStatusID,
			transition.Key,
			transition.Universal,
			guardsJSON,
			nullableString(transition.Permission),
		)
		if err != nil {
			return fmt.Errorf("failed to save transition %s: %w", transition.Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , space_id
		  , name
		  , created_by
		  , created_at
		FROM workflows
		WHERE id = $1
	`

	var workflow models.Workflow

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.SpaceID,
		&workflow.Name,
		&workflow.CreatedBy,
		&workflow.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadGraph(ctx, &workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow graph: %w", err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) ListBySpace(ctx context.Context, spaceID string) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , space_id
		  , name
		  , created_by
		  , created_at
		FROM workflows
		WHERE space_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		var workflow models.Workflow

		err := rows.Scan(
			&workflow.ID,
			&workflow.SpaceID,
			&workflow.Name,
			&workflow.CreatedBy,
			&workflow.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, &workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		if err := r.loadGraph(ctx, workflow); err != nil {
			return nil, fmt.Errorf("failed to load workflow graph: %w", err)
		}
	}

	return workflows, nil
}

// Delete removes a workflow and its graph. Task foreign keys make the
// database reject deletion of a workflow still referenced by tasks; the
// service layer checks first and reports ErrWorkflowInUse.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) loadGraph(ctx context.Context, workflow *models.Workflow) error {
	statusQuery := `
		SELECT id, key, name, color, sort_order, is_initial, is_done
		FROM workflow_statuses
		WHERE workflow_id = $1
		ORDER BY sort_order, key
	`

	rows, err := r.db.QueryContext(ctx, statusQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow statuses: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var statuses []*models.Status

	for rows.Next() {
		var (
			status models.Status
			color  sql.NullString
		)

		err := rows.Scan(
			&status.ID,
			&status.Key,
			&status.Name,
			&color,
			&status.SortOrder,
			&status.IsInitial,
			&status.IsDone,
		)
		if err != nil {
			return fmt.Errorf("failed to scan status: %w", err)
		}

		status.WorkflowID = workflow.ID
		status.Color = color.String

		statuses = append(statuses, &status)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating statuses: %w", err)
	}

	workflow.Statuses = statuses

	transitionQuery := `
		SELECT id, from_status_id, to_status_id, key, universal, guards, permission
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY key, id
	`

	rows, err = r.db.QueryContext(ctx, transitionQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow transitions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var transitions []*models.Transition

	for rows.Next() {
		var (
			transition   models.Transition
			fromStatusID sql.NullString
			permission   sql.NullString
			guardsJSON   []byte
		)

		err := rows.Scan(
			&transition.ID,
			&fromStatusID,
			&transition.ToStatusID,
			&transition.Key,
			&transition.Universal,
			&guardsJSON,
			&permission,
		)
		if err != nil {
			return fmt.Errorf("failed to scan transition: %w", err)
		}

		transition.WorkflowID = workflow.ID
		transition.FromStatusID = fromStatusID.String
		transition.Permission = permission.String

		if guardsJSON != nil {
			err := json.Unmarshal(guardsJSON, &transition.Guards)
			if err != nil {
				return fmt.Errorf("failed to unmarshal guards: %w", err)
			}
		}

		transitions = append(transitions, &transition)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transitions: %w", err)
	}

	workflow.Transitions = transitions

	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}

	return value
}
