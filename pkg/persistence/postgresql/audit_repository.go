package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// AuditRepository reads the append-only transition log. Inserts happen only
// inside TaskRepository.ApplyTransition's transaction.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

func (r *AuditRepository) ListByTask(ctx context.Context, taskID string) ([]*models.AuditRecord, error) {
	query := `
		SELECT id, task_id, user_id, from_status_id, to_status_id, transition_id, metadata, created_at
		FROM task_audit
		WHERE task_id = $1
		ORDER BY created_at, id
	`

	return r.queryRecords(ctx, query, taskID)
}

func (r *AuditRepository) ListBySpace(ctx context.Context, spaceID string, opts persistence.AuditQueryOptions) ([]*models.AuditRecord, error) {
	query := `
		SELECT a.id, a.task_id, a.user_id, a.from_status_id, a.to_status_id, a.transition_id, a.metadata, a.created_at
		FROM task_audit a
		JOIN tasks t ON t.id = a.task_id
		WHERE t.space_id = $1
	`

	args := []any{spaceID}

	if opts.ActorID != "" {
		args = append(args, opts.ActorID)
		query += " AND a.user_id = $" + strconv.Itoa(len(args))
	}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += " AND a.created_at >= $" + strconv.Itoa(len(args))
	}

	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += " AND a.created_at <= $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY a.created_at, a.id"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	return r.queryRecords(ctx, query, args...)
}

func (r *AuditRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*models.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.AuditRecord, 0)

	for rows.Next() {
		var (
			record       models.AuditRecord
			metadataJSON []byte
		)

		err := rows.Scan(
			&record.ID,
			&record.TaskID,
			&record.UserID,
			&record.FromStatusID,
			&record.ToStatusID,
			&record.TransitionID,
			&metadataJSON,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		if metadataJSON != nil {
			err := json.Unmarshal(metadataJSON, &record.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}
