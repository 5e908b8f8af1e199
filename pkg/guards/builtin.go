package guards

import (
	"context"
	"fmt"
	"strings"

	"github.com/tasklane/tasklane/pkg/models"
)

// AssigneeSet requires the task to have an assignee.
type AssigneeSet struct{}

func (g *AssigneeSet) Name() string {
	return "assignee_set"
}

func (g *AssigneeSet) ConfigSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
	}
}

func (g *AssigneeSet) Evaluate(_ context.Context, task *models.Task, _ map[string]any) (bool, string, error) {
	if strings.TrimSpace(task.Assignee) == "" {
		return false, "task has no assignee", nil
	}

	return true, "", nil
}

// DueDateSet requires the task to carry a due date.
type DueDateSet struct{}

func (g *DueDateSet) Name() string {
	return "due_date_set"
}

func (g *DueDateSet) ConfigSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
	}
}

func (g *DueDateSet) Evaluate(_ context.Context, task *models.Task, _ map[string]any) (bool, string, error) {
	if task.DueDate == nil {
		return false, "task has no due date", nil
	}

	return true, "", nil
}

// FieldsPopulated requires the named custom fields to be present and non-empty.
type FieldsPopulated struct{}

func (g *FieldsPopulated) Name() string {
	return "fields_populated"
}

func (g *FieldsPopulated) ConfigSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"fields"},
		"properties": map[string]any{
			"fields": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string"},
			},
		},
	}
}

func (g *FieldsPopulated) Evaluate(_ context.Context, task *models.Task, config map[string]any) (bool, string, error) {
	rawFields, _ := config["fields"].([]any)

	var missing []string

	for _, raw := range rawFields {
		name, ok := raw.(string)
		if !ok {
			return false, "", fmt.Errorf("field name must be a string, got %T", raw)
		}

		value, present := task.Fields[name]
		if !present || value == nil || value == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return false, "required fields not populated: " + strings.Join(missing, ", "), nil
	}

	return true, "", nil
}
