// Package events defines event types published for task and workflow
// lifecycle notifications. Reporting and compliance consumers subscribe to
// these; the transition engine publishes them after the commit, never before.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "tasklane.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent       EventType = "workflow.created"
	TaskCreatedEvent           EventType = "task.created"
	TaskTransitionAppliedEvent EventType = "task.transition.applied"
)

// Event is implemented by everything published on the bus.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SpaceID   string         `json:"space_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, spaceID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SpaceID:   spaceID,
	}
}

type WorkflowCreated struct {
	BaseEvent

	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	ActorID      string `json:"actor_id"`
}

func (e WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type TaskCreated struct {
	BaseEvent

	TaskID     string `json:"task_id"`
	WorkflowID string `json:"workflow_id"`
	StatusID   string `json:"status_id"`
	ActorID    string `json:"actor_id"`
}

func (e TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

// TaskTransitionApplied mirrors the audit record of one committed transition.
type TaskTransitionApplied struct {
	BaseEvent

	TaskID        string `json:"task_id"`
	WorkflowID    string `json:"workflow_id"`
	TransitionID  string `json:"transition_id"`
	TransitionKey string `json:"transition_key"`
	FromStatusID  string `json:"from_status_id"`
	ToStatusID    string `json:"to_status_id"`
	ActorID       string `json:"actor_id"`
	AuditRecordID string `json:"audit_record_id"`
}

func (e TaskTransitionApplied) GetType() EventType {
	return TaskTransitionAppliedEvent
}
