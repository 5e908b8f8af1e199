package models

// GuardSpec names a registered guard predicate and carries its configuration.
// Guards attached to a transition are evaluated in declared order.
type GuardSpec struct {
	Name   string         `json:"name"   validate:"required"`
	Config map[string]any `json:"config,omitempty"`
}

// Transition is a directed, optionally guarded and permission-gated edge
// between two statuses of one workflow.
//
// A universal transition has no origin status and is reachable from any
// status ("force to done" override semantics). Universality is always an
// explicit flag and universal edges are only applied for space admins.
type Transition struct {
	ID           string      `json:"id"`
	WorkflowID   string      `json:"workflow_id"`
	FromStatusID string      `json:"from_status_id,omitempty"` // empty iff Universal
	ToStatusID   string      `json:"to_status_id"   validate:"required"`
	Key          string      `json:"key"            validate:"required"`
	Universal    bool        `json:"universal"`
	Guards       []GuardSpec `json:"guards,omitempty"`
	Permission   string      `json:"permission,omitempty"`
}
