package models

import "time"

// TaskTemplate seeds new tasks. When a workflow is bound, tasks created from
// the template enter the graph at that workflow's initial status.
type TaskTemplate struct {
	ID         string         `json:"id"`
	SpaceID    string         `json:"space_id" validate:"required"`
	Name       string         `json:"name"     validate:"required,min=3"`
	WorkflowID string         `json:"workflow_id,omitempty"` // empty means unbound
	Defaults   map[string]any `json:"defaults,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
