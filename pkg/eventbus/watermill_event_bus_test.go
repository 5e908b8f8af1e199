package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklane/tasklane/pkg/channels/gochannel"
	"github.com/tasklane/tasklane/pkg/events"
)

func newTestBus(t *testing.T) *WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(slog.Default()))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu       sync.Mutex
		received []events.Event
	)

	done := make(chan struct{})

	bus.Handle(events.TaskTransitionAppliedEvent, func(_ context.Context, event events.Event) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()

		close(done)

		return nil
	})

	require.NoError(t, bus.Subscribe(t.Context()))

	event := events.TaskTransitionApplied{
		BaseEvent:     events.NewBaseEvent(events.TaskTransitionAppliedEvent, "space-1"),
		TaskID:        "task-1",
		TransitionID:  "tr-1",
		TransitionKey: "finish",
		FromStatusID:  "st-doing",
		ToStatusID:    "st-done",
		ActorID:       "user-1",
		AuditRecordID: "audit-1",
	}

	require.NoError(t, bus.Publish(t.Context(), "task-1", event))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, received, 1)

	applied, ok := received[0].(events.TaskTransitionApplied)
	require.True(t, ok)
	assert.Equal(t, "task-1", applied.TaskID)
	assert.Equal(t, "audit-1", applied.AuditRecordID)
	assert.Equal(t, events.TaskTransitionAppliedEvent, applied.GetType())
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	bus := newTestBus(t)

	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered for workflow.created; publish must not block or error.
	event := events.WorkflowCreated{
		BaseEvent:  events.NewBaseEvent(events.WorkflowCreatedEvent, "space-1"),
		WorkflowID: "wf-1",
	}

	require.NoError(t, bus.Publish(t.Context(), "space-1", event))
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
