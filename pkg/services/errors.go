// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tasklane/tasklane/pkg/persistence"
)

// Sentinel errors surfaced to callers. Persistence not-found and conflict
// conditions are re-exported so callers depend on one package.
var (
	ErrWorkflowNotFound       = persistence.ErrWorkflowNotFound
	ErrTaskNotFound           = persistence.ErrTaskNotFound
	ErrTemplateNotFound       = persistence.ErrTemplateNotFound
	ErrConcurrentModification = persistence.ErrConcurrentModification
	ErrWorkflowInUse          = persistence.ErrWorkflowInUse

	// ErrTransitionNotFound indicates the requested edge does not exist from
	// the task's current status (the common "illegal move" case) or does not
	// belong to the task's workflow.
	ErrTransitionNotFound = errors.New("transition not found")

	// ErrPermissionDenied indicates the permission oracle rejected the actor.
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError aggregates every violation found in a request or workflow
// definition, not just the first.
type ValidationError struct {
	Op         string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed: %s", e.Op, strings.Join(e.Violations, "; "))
}

// NewValidationError creates a validation error carrying all violations.
func NewValidationError(op string, violations []string) *ValidationError {
	return &ValidationError{Op: op, Violations: violations}
}

// IsValidationError checks if an error is a validation error that should map to HTTP 400.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// AsValidationError extracts the validation error, if any.
func AsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError

	ok := errors.As(err, &validationErr)

	return validationErr, ok
}

// GuardError reports every failing guard of a rejected transition.
type GuardError struct {
	TransitionKey string
	Reasons       []string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("transition %q rejected by guards: %s", e.TransitionKey, strings.Join(e.Reasons, "; "))
}

// IsGuardFailed checks if an error is a guard rejection.
func IsGuardFailed(err error) bool {
	var guardErr *GuardError

	return errors.As(err, &guardErr)
}

// AsGuardError extracts the guard error, if any.
func AsGuardError(err error) (*GuardError, bool) {
	var guardErr *GuardError

	ok := errors.As(err, &guardErr)

	return guardErr, ok
}

// PermissionError names the permission the actor is missing so the product
// surface can tell the user why the move was rejected.
type PermissionError struct {
	UserID     string
	Permission string
}

func (e *PermissionError) Error() string {
	if e.Permission == "" {
		return fmt.Sprintf("user %s is not a space admin", e.UserID)
	}

	return fmt.Sprintf("user %s lacks permission %s", e.UserID, e.Permission)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// IsPermissionDenied checks if an error is an authorization failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsTransitionNotFound checks if an error indicates a missing or illegal edge.
func IsTransitionNotFound(err error) bool {
	return errors.Is(err, ErrTransitionNotFound)
}
