package file

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// AuditRepository reads the append-only transition log. Records are written
// only by TaskRepository.ApplyTransition.
type AuditRepository struct {
	root string
}

func (r *AuditRepository) dir() string {
	return filepath.Join(r.root, "audit")
}

// insert is package-private: the audit log has no public write surface.
func (r *AuditRepository) insert(record *models.AuditRecord) error {
	return writeJSON(r.dir(), record.ID, record)
}

func (r *AuditRepository) all() ([]*models.AuditRecord, error) {
	ids, err := listIDs(r.dir())
	if err != nil {
		return nil, err
	}

	records := make([]*models.AuditRecord, 0, len(ids))

	for _, id := range ids {
		var record models.AuditRecord

		if err := readJSON(r.dir(), id, &record); err != nil {
			return nil, err
		}

		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}

		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

func (r *AuditRepository) ListByTask(_ context.Context, taskID string) ([]*models.AuditRecord, error) {
	records, err := r.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.AuditRecord, 0)

	for _, record := range records {
		if record.TaskID == taskID {
			filtered = append(filtered, record)
		}
	}

	return filtered, nil
}

func (r *AuditRepository) ListBySpace(ctx context.Context, spaceID string, opts persistence.AuditQueryOptions) ([]*models.AuditRecord, error) {
	taskRepo := &TaskRepository{root: r.root}

	tasks, err := taskRepo.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	inSpace := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		inSpace[task.ID] = true
	}

	records, err := r.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.AuditRecord, 0)

	for _, record := range records {
		if !inSpace[record.TaskID] {
			continue
		}

		if opts.ActorID != "" && record.UserID != opts.ActorID {
			continue
		}

		if opts.Since != nil && record.CreatedAt.Before(*opts.Since) {
			continue
		}

		if opts.Until != nil && record.CreatedAt.After(*opts.Until) {
			continue
		}

		filtered = append(filtered, record)

		if opts.Limit > 0 && len(filtered) >= opts.Limit {
			break
		}
	}

	return filtered, nil
}
