// Package models defines the core domain models for space-scoped task workflows.
package models

import "time"

// Workflow is a space-scoped directed graph of statuses and transitions
// defining the legal life-cycle of a task. A workflow is immutable once
// created: editing happens by duplicating the graph and re-binding templates.
type Workflow struct {
	ID          string        `json:"id"`
	SpaceID     string        `json:"space_id"    validate:"required"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Statuses    []*Status     `json:"statuses"    validate:"required,min=1"`
	Transitions []*Transition `json:"transitions"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
}

// InitialStatus returns the status flagged as initial. Workflow validation
// guarantees exactly one exists for any persisted workflow.
func (w *Workflow) InitialStatus() *Status {
	for _, status := range w.Statuses {
		if status.IsInitial {
			return status
		}
	}

	return nil
}

// StatusByID returns the status with the given ID, or nil.
func (w *Workflow) StatusByID(id string) *Status {
	for _, status := range w.Statuses {
		if status.ID == id {
			return status
		}
	}

	return nil
}

// StatusByKey returns the status with the given symbolic key, or nil.
func (w *Workflow) StatusByKey(key string) *Status {
	for _, status := range w.Statuses {
		if status.Key == key {
			return status
		}
	}

	return nil
}

// TransitionByID returns the transition with the given ID, or nil.
func (w *Workflow) TransitionByID(id string) *Transition {
	for _, transition := range w.Transitions {
		if transition.ID == id {
			return transition
		}
	}

	return nil
}

// TransitionsFrom returns the outgoing edges of the given status, universal
// transitions excluded.
func (w *Workflow) TransitionsFrom(statusID string) []*Transition {
	var out []*Transition

	for _, transition := range w.Transitions {
		if !transition.Universal && transition.FromStatusID == statusID {
			out = append(out, transition)
		}
	}

	return out
}

// UniversalTransitions returns the edges reachable from any status.
func (w *Workflow) UniversalTransitions() []*Transition {
	var out []*Transition

	for _, transition := range w.Transitions {
		if transition.Universal {
			out = append(out, transition)
		}
	}

	return out
}

// ResolveTransitionKey resolves a symbolic transition key against a current
// status: ordinary edges from that status win over universal edges.
func (w *Workflow) ResolveTransitionKey(fromStatusID, key string) *Transition {
	for _, transition := range w.Transitions {
		if !transition.Universal && transition.FromStatusID == fromStatusID && transition.Key == key {
			return transition
		}
	}

	for _, transition := range w.Transitions {
		if transition.Universal && transition.Key == key {
			return transition
		}
	}

	return nil
}
