package models

import "time"

// Task is a unit of work owned by a space and positioned on its workflow's
// status graph. StatusID is mutated exclusively by the transition engine;
// Version is the optimistic-lock token incremented by every committed
// transition.
type Task struct {
	ID          string         `json:"id"`
	SpaceID     string         `json:"space_id"    validate:"required"`
	WorkflowID  string         `json:"workflow_id" validate:"required"`
	StatusID    string         `json:"status_id"`
	Version     int64          `json:"version"`
	Title       string         `json:"title"       validate:"required"`
	Assignee    string         `json:"assignee,omitempty"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	TemplateID  string         `json:"template_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
