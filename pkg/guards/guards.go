// Package guards provides the registry of business-rule predicates that
// workflow transitions may require before a task is allowed to move.
package guards

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tasklane/tasklane/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Guard is a named predicate over task state. Evaluate reports whether the
// task satisfies the predicate and, when it does not, a human-readable reason
// the product surface can show to the user.
type Guard interface {
	Name() string
	ConfigSchema() map[string]any
	Evaluate(ctx context.Context, task *models.Task, config map[string]any) (bool, string, error)
}

// Registry holds the guards available to workflow definitions in a process.
type Registry struct {
	logger *slog.Logger
	guards map[string]Guard
}

// NewRegistry creates a registry with the builtin guards registered.
func NewRegistry(logger *slog.Logger) *Registry {
	registry := &Registry{
		logger: logger.With("component", "guard_registry"),
		guards: make(map[string]Guard),
	}

	registry.MustRegister(&AssigneeSet{})
	registry.MustRegister(&DueDateSet{})
	registry.MustRegister(&FieldsPopulated{})

	return registry
}

// Register adds a guard to the registry.
func (r *Registry) Register(guard Guard) error {
	name := guard.Name()
	if name == "" {
		return fmt.Errorf("guard name cannot be empty")
	}

	if _, exists := r.guards[name]; exists {
		return fmt.Errorf("guard %q is already registered", name)
	}

	r.guards[name] = guard
	r.logger.Debug("Registered guard", "name", name)

	return nil
}

// MustRegister registers a guard and panics on conflict. Used for builtins at
// construction time only.
func (r *Registry) MustRegister(guard Guard) {
	if err := r.Register(guard); err != nil {
		panic(err)
	}
}

// ValidateSpec checks that a guard spec names a registered guard and that its
// configuration conforms to the guard's JSON schema.
func (r *Registry) ValidateSpec(spec models.GuardSpec) error {
	guard, exists := r.guards[spec.Name]
	if !exists {
		return fmt.Errorf("unknown guard %q", spec.Name)
	}

	schema := guard.ConfigSchema()
	if schema == nil {
		return nil
	}

	config := spec.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	configLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for guard %q: %w", spec.Name, err)
	}

	if !result.Valid() {
		for _, violation := range result.Errors() {
			return fmt.Errorf("invalid config for guard %q: %s", spec.Name, violation.String())
		}
	}

	return nil
}

// Evaluate runs the given guard specs against a task in declared order and
// returns the reasons of every failing guard, not just the first.
func (r *Registry) Evaluate(ctx context.Context, specs []models.GuardSpec, task *models.Task) ([]string, error) {
	var reasons []string

	for _, spec := range specs {
		guard, exists := r.guards[spec.Name]
		if !exists {
			return nil, fmt.Errorf("unknown guard %q", spec.Name)
		}

		ok, reason, err := guard.Evaluate(ctx, task, spec.Config)
		if err != nil {
			return nil, fmt.Errorf("guard %q evaluation failed: %w", spec.Name, err)
		}

		if !ok {
			reasons = append(reasons, reason)
		}
	}

	return reasons, nil
}
