package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
)

// TemplateRepository handles task-template file operations.
type TemplateRepository struct {
	root string
}

func (r *TemplateRepository) dir() string {
	return filepath.Join(r.root, "templates")
}

func (r *TemplateRepository) Save(_ context.Context, template *models.TaskTemplate) error {
	return writeJSON(r.dir(), template.ID, template)
}

func (r *TemplateRepository) GetByID(_ context.Context, id string) (*models.TaskTemplate, error) {
	var template models.TaskTemplate

	err := readJSON(r.dir(), id, &template)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, err
	}

	return &template, nil
}

func (r *TemplateRepository) ListBySpace(ctx context.Context, spaceID string) ([]*models.TaskTemplate, error) {
	ids, err := listIDs(r.dir())
	if err != nil {
		return nil, err
	}

	templates := make([]*models.TaskTemplate, 0)

	for _, id := range ids {
		template, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if template.SpaceID == spaceID {
			templates = append(templates, template)
		}
	}

	sort.Slice(templates, func(i, j int) bool {
		if templates[i].CreatedAt.Equal(templates[j].CreatedAt) {
			return templates[i].ID < templates[j].ID
		}

		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})

	return templates, nil
}

func (r *TemplateRepository) Delete(_ context.Context, id string) error {
	if err := removeJSON(r.dir(), id); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrTemplateNotFound
		}

		return err
	}

	return nil
}
