package guards

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklane/tasklane/pkg/models"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default())
}

func TestRegistry_Register(t *testing.T) {
	registry := newTestRegistry()

	err := registry.Register(&AssigneeSet{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_ValidateSpec(t *testing.T) {
	registry := newTestRegistry()

	err := registry.ValidateSpec(models.GuardSpec{Name: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown guard "nope"`)

	err = registry.ValidateSpec(models.GuardSpec{Name: "assignee_set"})
	assert.NoError(t, err)

	// assignee_set takes no configuration.
	err = registry.ValidateSpec(models.GuardSpec{
		Name:   "assignee_set",
		Config: map[string]any{"extra": true},
	})
	require.Error(t, err)

	// fields_populated requires a non-empty fields array.
	err = registry.ValidateSpec(models.GuardSpec{Name: "fields_populated"})
	require.Error(t, err)

	err = registry.ValidateSpec(models.GuardSpec{
		Name:   "fields_populated",
		Config: map[string]any{"fields": []any{"severity"}},
	})
	assert.NoError(t, err)
}

func TestRegistry_EvaluateAggregatesAllFailures(t *testing.T) {
	registry := newTestRegistry()

	task := &models.Task{ID: "task-1", Fields: map[string]any{"severity": ""}}

	specs := []models.GuardSpec{
		{Name: "assignee_set"},
		{Name: "due_date_set"},
		{Name: "fields_populated", Config: map[string]any{"fields": []any{"severity"}}},
	}

	reasons, err := registry.Evaluate(t.Context(), specs, task)
	require.NoError(t, err)
	require.Len(t, reasons, 3)

	// Reasons come back in declared guard order.
	assert.Equal(t, "task has no assignee", reasons[0])
	assert.Equal(t, "task has no due date", reasons[1])
	assert.Contains(t, reasons[2], "severity")
}

func TestRegistry_EvaluatePassing(t *testing.T) {
	registry := newTestRegistry()

	due := time.Now().Add(24 * time.Hour)
	task := &models.Task{
		ID:       "task-1",
		Assignee: "user-1",
		DueDate:  &due,
		Fields:   map[string]any{"severity": "high"},
	}

	reasons, err := registry.Evaluate(t.Context(), []models.GuardSpec{
		{Name: "assignee_set"},
		{Name: "due_date_set"},
		{Name: "fields_populated", Config: map[string]any{"fields": []any{"severity"}}},
	}, task)
	require.NoError(t, err)
	assert.Empty(t, reasons)
}

func TestRegistry_EvaluateUnknownGuard(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Evaluate(t.Context(), []models.GuardSpec{{Name: "nope"}}, &models.Task{})
	require.Error(t, err)
}
