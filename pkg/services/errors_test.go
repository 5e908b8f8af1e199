package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("CreateWorkflow", []string{"first", "second"})

	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "first; second")

	extracted, ok := AsValidationError(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, []string{"first", "second"}, extracted.Violations)

	assert.False(t, IsValidationError(errors.New("plain")))
}

func TestGuardError(t *testing.T) {
	err := &GuardError{TransitionKey: "finish", Reasons: []string{"task has no assignee"}}

	assert.True(t, IsGuardFailed(err))
	assert.Contains(t, err.Error(), `"finish"`)
	assert.Contains(t, err.Error(), "task has no assignee")

	extracted, ok := AsGuardError(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, "finish", extracted.TransitionKey)
}

func TestPermissionError(t *testing.T) {
	err := &PermissionError{UserID: "user-1", Permission: "task.reopen"}

	assert.True(t, IsPermissionDenied(err))
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.Contains(t, err.Error(), "task.reopen")

	// Universal transitions are rejected without a named permission.
	adminErr := &PermissionError{UserID: "user-1"}
	assert.True(t, IsPermissionDenied(adminErr))
	assert.Contains(t, adminErr.Error(), "not a space admin")
}

func TestTransitionNotFound(t *testing.T) {
	err := fmt.Errorf("transition %q from status %s: %w", "finish", "st-1", ErrTransitionNotFound)

	assert.True(t, IsTransitionNotFound(err))
	assert.False(t, IsTransitionNotFound(errors.New("plain")))
}
