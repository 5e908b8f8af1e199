package models

import "time"

// AuditRecord captures one committed transition. Records are written once,
// inside the same transaction as the status mutation, and are never updated
// or deleted.
type AuditRecord struct {
	ID           string         `json:"id"`
	TaskID       string         `json:"task_id"`
	UserID       string         `json:"user_id"`
	FromStatusID string         `json:"from_status_id"`
	ToStatusID   string         `json:"to_status_id"`
	TransitionID string         `json:"transition_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
