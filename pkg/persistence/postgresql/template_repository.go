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

// TemplateRepository handles task-template database operations.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

func (r *TemplateRepository) Save(ctx context.Context, template *models.TaskTemplate) error {
	defaultsJSON, err := json.Marshal(template.Defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}

	query := `
		INSERT INTO task_templates (id, space_id, name, workflow_id, defaults, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			workflow_id = EXCLUDED.workflow_id,
			defaults = EXCLUDED.defaults,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		template.ID,
		template.SpaceID,
		template.Name,
		nullableString(template.WorkflowID),
		defaultsJSON,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.TaskTemplate, error) {
	query := `
		SELECT id, space_id, name, workflow_id, defaults, created_at, updated_at
		FROM task_templates
		WHERE id = $1
	`

	template, err := r.scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	return template, nil
}

func (r *TemplateRepository) ListBySpace(ctx context.Context, spaceID string) ([]*models.TaskTemplate, error) {
	query := `
		SELECT id, space_id, name, workflow_id, defaults, created_at, updated_at
		FROM task_templates
		WHERE space_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	templates := make([]*models.TaskTemplate, 0)

	for rows.Next() {
		template, err := r.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM task_templates WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrTemplateNotFound
	}

	return nil
}

func (r *TemplateRepository) scanTemplate(scanner interface {
	Scan(dest ...any) error
}) (*models.TaskTemplate, error) {
	var (
		template     models.TaskTemplate
		workflowID   sql.NullString
		defaultsJSON []byte
	)

	err := scanner.Scan(
		&template.ID,
		&template.SpaceID,
		&template.Name,
		&workflowID,
		&defaultsJSON,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	template.WorkflowID = workflowID.String

	if defaultsJSON != nil {
		err := json.Unmarshal(defaultsJSON, &template.Defaults)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
		}
	}

	return &template, nil
}
