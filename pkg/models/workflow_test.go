package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestWorkflow() *Workflow {
	return &Workflow{
		ID:      "wf-1",
		SpaceID: "space-1",
		Name:    "Bug tracking",
		Statuses: []*Status{
			{ID: "st-todo", WorkflowID: "wf-1", Key: "todo", Name: "To Do", IsInitial: true},
			{ID: "st-doing", WorkflowID: "wf-1", Key: "doing", Name: "In Progress"},
			{ID: "st-done", WorkflowID: "wf-1", Key: "done", Name: "Done", IsDone: true},
		},
		Transitions: []*Transition{
			{ID: "tr-start", WorkflowID: "wf-1", FromStatusID: "st-todo", ToStatusID: "st-doing", Key: "start"},
			{ID: "tr-finish", WorkflowID: "wf-1", FromStatusID: "st-doing", ToStatusID: "st-done", Key: "finish"},
			{ID: "tr-reopen", WorkflowID: "wf-1", FromStatusID: "st-done", ToStatusID: "st-todo", Key: "reopen"},
			{ID: "tr-force", WorkflowID: "wf-1", ToStatusID: "st-done", Key: "finish", Universal: true},
		},
	}
}

func TestWorkflow_InitialStatus(t *testing.T) {
	workflow := buildTestWorkflow()

	initial := workflow.InitialStatus()
	require.NotNil(t, initial)
	assert.Equal(t, "st-todo", initial.ID)

	empty := &Workflow{}
	assert.Nil(t, empty.InitialStatus())
}

func TestWorkflow_StatusLookups(t *testing.T) {
	workflow := buildTestWorkflow()

	assert.Equal(t, "doing", workflow.StatusByID("st-doing").Key)
	assert.Nil(t, workflow.StatusByID("st-missing"))

	assert.Equal(t, "st-done", workflow.StatusByKey("done").ID)
	assert.Nil(t, workflow.StatusByKey("missing"))
}

func TestWorkflow_TransitionsFrom(t *testing.T) {
	workflow := buildTestWorkflow()

	from := workflow.TransitionsFrom("st-todo")
	require.Len(t, from, 1)
	assert.Equal(t, "tr-start", from[0].ID)

	// Universal edges are not outgoing edges of any particular status.
	for _, transition := range workflow.TransitionsFrom("st-doing") {
		assert.False(t, transition.Universal)
	}

	assert.Empty(t, workflow.TransitionsFrom("st-missing"))
}

func TestWorkflow_UniversalTransitions(t *testing.T) {
	workflow := buildTestWorkflow()

	universal := workflow.UniversalTransitions()
	require.Len(t, universal, 1)
	assert.Equal(t, "tr-force", universal[0].ID)
}

func TestWorkflow_ResolveTransitionKey(t *testing.T) {
	workflow := buildTestWorkflow()

	// An ordinary edge from the current status wins over a universal edge
	// with the same key.
	resolved := workflow.ResolveTransitionKey("st-doing", "finish")
	require.NotNil(t, resolved)
	assert.Equal(t, "tr-finish", resolved.ID)

	// From a status without an ordinary "finish" edge the universal one applies.
	resolved = workflow.ResolveTransitionKey("st-todo", "finish")
	require.NotNil(t, resolved)
	assert.Equal(t, "tr-force", resolved.ID)

	assert.Nil(t, workflow.ResolveTransitionKey("st-todo", "missing"))
}
