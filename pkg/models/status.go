package models

// Status is a named state a task may occupy within one workflow. Keys are
// symbolic and unique per workflow (e.g. IN_PROGRESS); exactly one status per
// workflow carries IsInitial.
type Status struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Key        string `json:"key"         validate:"required"`
	Name       string `json:"name"        validate:"required"`
	Color      string `json:"color,omitempty"`
	SortOrder  int    `json:"sort_order"`
	IsInitial  bool   `json:"is_initial"`
	IsDone     bool   `json:"is_done"`
}
