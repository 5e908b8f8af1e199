// Package web provides HTTP request and response types for the tasklane API.
package web

import (
	"time"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/services"
)

// StatusRequest declares one status of a new workflow.
type StatusRequest struct {
	Key       string `json:"key"        validate:"required"`
	Name      string `json:"name"       validate:"required"`
	Color     string `json:"color,omitempty"`
	IsInitial bool   `json:"is_initial"`
	IsDone    bool   `json:"is_done"`
}

// TransitionRequest declares one edge of a new workflow by status keys.
type TransitionRequest struct {
	Key        string             `json:"key"    validate:"required"`
	FromKey    string             `json:"from_key,omitempty"`
	ToKey      string             `json:"to_key" validate:"required"`
	Universal  bool               `json:"universal"`
	Guards     []models.GuardSpec `json:"guards,omitempty"`
	Permission string             `json:"permission,omitempty"`
}

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string              `json:"name"        validate:"required,min=3"`
	Statuses    []StatusRequest     `json:"statuses"    validate:"required,min=1,dive"`
	Transitions []TransitionRequest `json:"transitions" validate:"dive"`
}

func (r CreateWorkflowRequest) toInput() services.CreateWorkflowInput {
	input := services.CreateWorkflowInput{Name: r.Name}

	for _, status := range r.Statuses {
		input.Statuses = append(input.Statuses, services.StatusInput{
			Key:       status.Key,
			Name:      status.Name,
			Color:     status.Color,
			IsInitial: status.IsInitial,
			IsDone:    status.IsDone,
		})
	}

	for _, transition := range r.Transitions {
		input.Transitions = append(input.Transitions, services.TransitionInput{
			Key:        transition.Key,
			FromKey:    transition.FromKey,
			ToKey:      transition.ToKey,
			Universal:  transition.Universal,
			Guards:     transition.Guards,
			Permission: transition.Permission,
		})
	}

	return input
}

// CreateTaskRequest represents the request body for creating a new task.
type CreateTaskRequest struct {
	Title      string         `json:"title" validate:"required"`
	TemplateID string         `json:"template_id,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Assignee   string         `json:"assignee,omitempty"`
	DueDate    *time.Time     `json:"due_date,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// CreateTemplateRequest represents the request body for creating a task template.
type CreateTemplateRequest struct {
	Name     string         `json:"name" validate:"required,min=3"`
	Defaults map[string]any `json:"defaults,omitempty"`
}

// AssignWorkflowRequest binds a workflow to a template. An empty workflow_id
// unbinds the template.
type AssignWorkflowRequest struct {
	WorkflowID string `json:"workflow_id"`
}

// PerformTransitionRequest represents the request body for executing a
// transition. Exactly one of transition_id and transition_key must be set.
type PerformTransitionRequest struct {
	TransitionID  string         `json:"transition_id,omitempty"`
	TransitionKey string         `json:"transition_key,omitempty"`
	UserID        string         `json:"user_id" validate:"required"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
