package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklane/tasklane/pkg/guards"
	"github.com/tasklane/tasklane/pkg/models"
	"github.com/tasklane/tasklane/pkg/permissions"
	"github.com/tasklane/tasklane/pkg/persistence/file"
	"github.com/tasklane/tasklane/pkg/services"
	"github.com/tasklane/tasklane/pkg/web"
)

type testEnv struct {
	app    *fiber.App
	oracle *permissions.Static
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	registry := guards.NewRegistry(slog.Default())
	oracle := permissions.NewStatic()

	workflowService := services.NewWorkflowService(persistence, registry, nil, slog.Default())
	taskService := services.NewTaskService(persistence, nil, slog.Default())
	templateService := services.NewTemplateService(persistence, slog.Default())
	auditService := services.NewAuditService(persistence, slog.Default())
	engine := services.NewTransitionEngine(persistence, oracle, registry, nil, nil, slog.Default())

	handlers := web.NewAPIHandlers(
		workflowService,
		taskService,
		templateService,
		auditService,
		engine,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()

	spaces := app.Group("/spaces/:spaceId")

	w := spaces.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/duplicate", handlers.DuplicateWorkflow)

	tp := spaces.Group("/templates")
	tp.Get("/", handlers.GetTemplates)
	tp.Post("/", handlers.CreateTemplate)
	tp.Put("/:templateId/workflow", handlers.AssignWorkflowToTemplate)

	st := spaces.Group("/tasks")
	st.Get("/", handlers.GetTasks)
	st.Post("/", handlers.CreateTask)

	spaces.Get("/audit", handlers.GetSpaceAudit)

	tk := app.Group("/tasks")
	tk.Get("/:id", handlers.GetTask)
	tk.Get("/:id/transitions", handlers.GetAvailableTransitions)
	tk.Post("/:id/transitions", handlers.PerformTransition)
	tk.Get("/:id/audit", handlers.GetTaskAudit)

	return &testEnv{app: app, oracle: oracle}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("X-User-ID", "user-1")

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func workflowRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name: "Bug tracking",
		Statuses: []web.StatusRequest{
			{Key: "todo", Name: "To Do", IsInitial: true},
			{Key: "doing", Name: "In Progress"},
			{Key: "done", Name: "Done", IsDone: true},
		},
		Transitions: []web.TransitionRequest{
			{Key: "start", FromKey: "todo", ToKey: "doing"},
			{Key: "finish", FromKey: "doing", ToKey: "done"},
		},
	}
}

func (e *testEnv) createWorkflow(t *testing.T) models.Workflow {
	t.Helper()

	resp, body := e.request(t, http.MethodPost, "/spaces/space-1/workflows/", workflowRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	return workflow
}

func (e *testEnv) createTask(t *testing.T, workflowID string) models.Task {
	t.Helper()

	resp, body := e.request(t, http.MethodPost, "/spaces/space-1/tasks/", web.CreateTaskRequest{
		Title:      "Fix login crash",
		WorkflowID: workflowID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task models.Task
	require.NoError(t, json.Unmarshal(body, &task))

	return task
}

func TestCreateWorkflowEndpoint(t *testing.T) {
	env := setupTestApp(t)

	workflow := env.createWorkflow(t)
	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, "space-1", workflow.SpaceID)
	assert.Equal(t, "user-1", workflow.CreatedBy)
	assert.Len(t, workflow.Statuses, 3)

	// Invalid definitions map to 400 with the violations in the detail.
	invalid := workflowRequest()
	invalid.Transitions[0].FromKey = "missing"

	resp, body := env.request(t, http.MethodPost, "/spaces/space-1/workflows/", invalid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "undeclared status")

	resp, _ = env.request(t, http.MethodPost, "/spaces/space-1/workflows/", web.CreateWorkflowRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflowEndpoint(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	resp, body := env.request(t, http.MethodGet, "/spaces/space-1/workflows/"+workflow.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, workflow.ID, fetched.ID)

	// Space scoping: another space gets a 404.
	resp, _ = env.request(t, http.MethodGet, "/spaces/space-2/workflows/"+workflow.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDuplicateWorkflowEndpoint(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	resp, body := env.request(t, http.MethodPost, "/spaces/space-1/workflows/"+workflow.ID+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var copied models.Workflow
	require.NoError(t, json.Unmarshal(body, &copied))
	assert.NotEqual(t, workflow.ID, copied.ID)
	assert.Equal(t, "Bug tracking (copy)", copied.Name)
	assert.Len(t, copied.Statuses, len(workflow.Statuses))
}

func TestDeleteWorkflowEndpoint(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	env.createTask(t, workflow.ID)

	// In use: 409.
	resp, _ := env.request(t, http.MethodDelete, "/spaces/space-1/workflows/"+workflow.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	unused := env.createWorkflow(t)
	resp, _ = env.request(t, http.MethodDelete, "/spaces/space-1/workflows/"+unused.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTemplateEndpoints(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	resp, body := env.request(t, http.MethodPost, "/spaces/space-1/templates/", web.CreateTemplateRequest{
		Name:     "Bug report",
		Defaults: map[string]any{"severity": "medium"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var template models.TaskTemplate
	require.NoError(t, json.Unmarshal(body, &template))

	resp, body = env.request(t, http.MethodPut, "/spaces/space-1/templates/"+template.ID+"/workflow", web.AssignWorkflowRequest{
		WorkflowID: workflow.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bound models.TaskTemplate
	require.NoError(t, json.Unmarshal(body, &bound))
	assert.Equal(t, workflow.ID, bound.WorkflowID)

	// A task created from the template starts at the workflow's initial status.
	resp, body = env.request(t, http.MethodPost, "/spaces/space-1/tasks/", web.CreateTaskRequest{
		Title:      "From template",
		TemplateID: template.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task models.Task
	require.NoError(t, json.Unmarshal(body, &task))
	assert.Equal(t, workflow.ID, task.WorkflowID)
	assert.Equal(t, "medium", task.Fields["severity"])
}

func TestPerformTransitionEndpoint(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)
	task := env.createTask(t, workflow.ID)

	resp, body := env.request(t, http.MethodPost, "/tasks/"+task.ID+"/transitions", web.PerformTransitionRequest{
		TransitionKey: "start",
		UserID:        "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result services.TransitionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, int64(1), result.Task.Version)
	assert.NotEmpty(t, result.AuditRecordID)

	// Illegal move: 404.
	resp, _ = env.request(t, http.MethodPost, "/tasks/"+task.ID+"/transitions", web.PerformTransitionRequest{
		TransitionKey: "start",
		UserID:        "user-1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Ambiguous reference: 400.
	resp, _ = env.request(t, http.MethodPost, "/tasks/"+task.ID+"/transitions", web.PerformTransitionRequest{
		TransitionID:  "tr-1",
		TransitionKey: "finish",
		UserID:        "user-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing user: 400 from request validation.
	resp, _ = env.request(t, http.MethodPost, "/tasks/"+task.ID+"/transitions", web.PerformTransitionRequest{
		TransitionKey: "finish",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPerformTransitionPermissionAndConflictMapping(t *testing.T) {
	env := setupTestApp(t)

	// Rebuild the workflow with a permission-gated edge.
	req := workflowRequest()
	req.Transitions[0].Permission = "task.start"

	resp, body := env.request(t, http.MethodPost, "/spaces/space-1/workflows/", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	task := env.createTask(t, workflow.ID)

	resp, _ = env.request(t, http.MethodPost, "/tasks/"+task.ID+"/transitions", web.PerformTransitionRequest{
		TransitionKey: "start",
		UserID:        "user-1",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	env.oracle.Grant("user-1", "space-1", "task.start")

	resp, _ = env.request(t, http.MethodPost, "/tasks/"+task.ID+"/transitions", web.PerformTransitionRequest{
		TransitionKey: "start",
		UserID:        "user-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAvailableTransitionsEndpoint(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)
	task := env.createTask(t, workflow.ID)

	resp, body := env.request(t, http.MethodGet, "/tasks/"+task.ID+"/transitions?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Transitions []*models.Transition `json:"transitions"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Transitions, 1)
	assert.Equal(t, "start", payload.Transitions[0].Key)
}

func TestAuditEndpoints(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)
	task := env.createTask(t, workflow.ID)

	resp, _ := env.request(t, http.MethodPost, "/tasks/"+task.ID+"/transitions", web.PerformTransitionRequest{
		TransitionKey: "start",
		UserID:        "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.request(t, http.MethodGet, "/tasks/"+task.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Records []*models.AuditRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Records, 1)
	assert.Equal(t, "user-1", payload.Records[0].UserID)

	resp, body = env.request(t, http.MethodGet, "/spaces/space-1/audit?actor_id=user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Len(t, payload.Records, 1)

	resp, _ = env.request(t, http.MethodGet, "/spaces/space-1/audit?since=not-a-time", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(t, http.MethodGet, "/tasks/missing/audit", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetTaskEndpoint(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)
	task := env.createTask(t, workflow.ID)

	resp, body := env.request(t, http.MethodGet, "/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Task
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, task.ID, fetched.ID)

	resp, _ = env.request(t, http.MethodGet, "/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
