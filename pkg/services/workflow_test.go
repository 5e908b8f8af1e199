package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklane/tasklane/pkg/guards"
	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/persistence"
	"github.com/tasklane/tasklane/pkg/persistence/file"
)

func newWorkflowService(t *testing.T) (*WorkflowService, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	registry := guards.NewRegistry(slog.Default())

	return NewWorkflowService(p, registry, nil, slog.Default()), p
}

func bugTrackingInput() CreateWorkflowInput {
	return CreateWorkflowInput{
		Name: "Bug tracking",
		Statuses: []StatusInput{
			{Key: "todo", Name: "To Do", IsInitial: true},
			{Key: "doing", Name: "In Progress"},
			{Key: "done", Name: "Done", IsDone: true},
		},
		Transitions: []TransitionInput{
			{Key: "start", FromKey: "todo", ToKey: "doing"},
			{Key: "finish", FromKey: "doing", ToKey: "done", Guards: []models.GuardSpec{{Name: "assignee_set"}}},
			{Key: "reopen", FromKey: "done", ToKey: "todo"},
			{Key: "force_done", ToKey: "done", Universal: true},
		},
	}
}

func TestWorkflowService_Create(t *testing.T) {
	service, _ := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), "space-1", bugTrackingInput(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, workflow)

	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, "space-1", workflow.SpaceID)
	assert.Equal(t, "user-1", workflow.CreatedBy)
	assert.Len(t, workflow.Statuses, 3)
	assert.Len(t, workflow.Transitions, 4)

	initial := workflow.InitialStatus()
	require.NotNil(t, initial)
	assert.Equal(t, "todo", initial.Key)

	// Sort order follows declaration order.
	for i, status := range workflow.Statuses {
		assert.Equal(t, i, status.SortOrder)
	}

	// Edges are rebound from keys to generated status IDs.
	start := workflow.ResolveTransitionKey(workflow.StatusByKey("todo").ID, "start")
	require.NotNil(t, start)
	assert.Equal(t, workflow.StatusByKey("doing").ID, start.ToStatusID)

	force := workflow.UniversalTransitions()
	require.Len(t, force, 1)
	assert.Empty(t, force[0].FromStatusID)
}

func TestWorkflowService_CreateFirstStatusBecomesInitial(t *testing.T) {
	service, _ := newWorkflowService(t)

	input := CreateWorkflowInput{
		Name: "Simple flow",
		Statuses: []StatusInput{
			{Key: "open", Name: "Open"},
			{Key: "closed", Name: "Closed", IsDone: true},
		},
	}

	workflow, err := service.Create(t.Context(), "space-1", input, "user-1")
	require.NoError(t, err)

	initial := workflow.InitialStatus()
	require.NotNil(t, initial)
	assert.Equal(t, "open", initial.Key)
}

func TestWorkflowService_CreateAggregatesViolations(t *testing.T) {
	service, _ := newWorkflowService(t)

	input := CreateWorkflowInput{
		Name: "x",
		Statuses: []StatusInput{
			{Key: "a", Name: "A", IsInitial: true},
			{Key: "a", Name: "A again", IsInitial: true},
		},
		Transitions: []TransitionInput{
			{Key: "go", FromKey: "missing", ToKey: "nowhere"},
			{Key: "go", FromKey: "missing", ToKey: "a"},
			{Key: "guarded", FromKey: "a", ToKey: "a", Guards: []models.GuardSpec{{Name: "unknown_guard"}}},
		},
	}

	_, err := service.Create(t.Context(), "space-1", input, "user-1")
	require.Error(t, err)

	validationErr, ok := AsValidationError(err)
	require.True(t, ok)

	violations := validationErr.Violations
	assert.Contains(t, violations, "name must be at least 3 characters")
	assert.Contains(t, violations, `duplicate status key "a"`)
	assert.Contains(t, violations, "at most one status may be flagged initial")
	assert.Contains(t, violations, `transition "go" references undeclared status "missing"`)
	assert.Contains(t, violations, `transition "go" references undeclared status "nowhere"`)
	assert.Contains(t, violations, `duplicate transition key "go" from status "missing"`)
	assert.Contains(t, violations, `transition "guarded": unknown guard "unknown_guard"`)

	// Nothing was persisted.
	workflows, listErr := service.List(t.Context(), "space-1")
	require.NoError(t, listErr)
	assert.Empty(t, workflows)
}

func TestWorkflowService_CreateUniversalWithFromStatus(t *testing.T) {
	service, _ := newWorkflowService(t)

	input := CreateWorkflowInput{
		Name: "Broken universal",
		Statuses: []StatusInput{
			{Key: "a", Name: "A", IsInitial: true},
		},
		Transitions: []TransitionInput{
			{Key: "jump", FromKey: "a", ToKey: "a", Universal: true},
		},
	}

	_, err := service.Create(t.Context(), "space-1", input, "user-1")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "must not declare a from status")
}

func TestWorkflowService_FetchByIDForeignSpace(t *testing.T) {
	service, _ := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), "space-1", bugTrackingInput(), "user-1")
	require.NoError(t, err)

	// Another space cannot see the workflow at all.
	_, err = service.FetchByID(t.Context(), "space-2", workflow.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	fetched, err := service.FetchByID(t.Context(), "space-1", workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, fetched.ID)
}

func TestWorkflowService_Duplicate(t *testing.T) {
	service, _ := newWorkflowService(t)

	source, err := service.Create(t.Context(), "space-1", bugTrackingInput(), "user-1")
	require.NoError(t, err)

	copied, err := service.Duplicate(t.Context(), "space-1", source.ID, "user-2")
	require.NoError(t, err)

	assert.NotEqual(t, source.ID, copied.ID)
	assert.Equal(t, "Bug tracking (copy)", copied.Name)
	assert.Equal(t, "user-2", copied.CreatedBy)
	require.Len(t, copied.Statuses, len(source.Statuses))
	require.Len(t, copied.Transitions, len(source.Transitions))

	// Fresh identities everywhere, same shape.
	for i, status := range copied.Statuses {
		assert.NotEqual(t, source.Statuses[i].ID, status.ID)
		assert.Equal(t, source.Statuses[i].Key, status.Key)
		assert.Equal(t, copied.ID, status.WorkflowID)
	}

	// Edges are rebound onto the copied statuses.
	finish := copied.ResolveTransitionKey(copied.StatusByKey("doing").ID, "finish")
	require.NotNil(t, finish)
	assert.Equal(t, copied.StatusByKey("done").ID, finish.ToStatusID)
	assert.Len(t, finish.Guards, 1)

	// The source graph is untouched.
	reloaded, err := service.FetchByID(t.Context(), "space-1", source.ID)
	require.NoError(t, err)
	assert.Equal(t, source.Name, reloaded.Name)
}

func TestWorkflowService_AssignToTemplate(t *testing.T) {
	service, p := newWorkflowService(t)
	templates := NewTemplateService(p, slog.Default())

	workflow, err := service.Create(t.Context(), "space-1", bugTrackingInput(), "user-1")
	require.NoError(t, err)

	template, err := templates.Create(t.Context(), "space-1", CreateTemplateInput{Name: "Bug report"})
	require.NoError(t, err)

	bound, err := service.AssignToTemplate(t.Context(), "space-1", template.ID, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, bound.WorkflowID)

	// Unbind with an empty workflow ID.
	unbound, err := service.AssignToTemplate(t.Context(), "space-1", template.ID, "")
	require.NoError(t, err)
	assert.Empty(t, unbound.WorkflowID)

	// A workflow from another space cannot be bound.
	foreign, err := service.Create(t.Context(), "space-2", bugTrackingInput(), "user-1")
	require.NoError(t, err)

	_, err = service.AssignToTemplate(t.Context(), "space-1", template.ID, foreign.ID)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestWorkflowService_DeleteInUse(t *testing.T) {
	service, p := newWorkflowService(t)
	tasks := NewTaskService(p, nil, slog.Default())

	workflow, err := service.Create(t.Context(), "space-1", bugTrackingInput(), "user-1")
	require.NoError(t, err)

	_, err = tasks.Create(t.Context(), "space-1", CreateTaskInput{
		Title:      "Fix login crash",
		WorkflowID: workflow.ID,
	}, "user-1")
	require.NoError(t, err)

	err = service.Delete(t.Context(), "space-1", workflow.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowInUse(err))

	// Still fetchable after the rejected delete.
	_, err = service.FetchByID(t.Context(), "space-1", workflow.ID)
	require.NoError(t, err)
}

func TestWorkflowService_DeleteUnused(t *testing.T) {
	service, _ := newWorkflowService(t)

	workflow, err := service.Create(t.Context(), "space-1", bugTrackingInput(), "user-1")
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), "space-1", workflow.ID))

	_, err = service.FetchByID(t.Context(), "space-1", workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
