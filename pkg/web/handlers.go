// Package web provides HTTP handlers and REST API endpoints for workflow and
// task-transition management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/tasklane/tasklane/pkg/persistence"
	"github.com/tasklane/tasklane/pkg/services"
)

// actorHeader carries the acting user's identity on endpoints whose body has
// no user field. Authentication itself happens upstream.
const actorHeader = "X-User-ID"

type APIHandlers struct {
	workflowService *services.WorkflowService
	taskService     *services.TaskService
	templateService *services.TemplateService
	auditService    *services.AuditService
	engine          *services.TransitionEngine
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.WorkflowService,
	taskService *services.TaskService,
	templateService *services.TemplateService,
	auditService *services.AuditService,
	engine *services.TransitionEngine,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		taskService:     taskService,
		templateService: templateService,
		auditService:    auditService,
		engine:          engine,
		validator:       validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context(), c.Params("spaceId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("spaceId"), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), c.Params("spaceId"), req.toInput(), c.Get(actorHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DuplicateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	copied, err := h.workflowService.Duplicate(c.Context(), c.Params("spaceId"), id, c.Get(actorHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(copied)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), c.Params("spaceId"), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	var req CreateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template, err := h.templateService.Create(c.Context(), c.Params("spaceId"), services.CreateTemplateInput{
		Name:     req.Name,
		Defaults: req.Defaults,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	templates, err := h.templateService.ListBySpace(c.Context(), c.Params("spaceId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"templates": templates})
}

// AssignWorkflowToTemplate binds (or, with an empty workflow_id, unbinds) a
// workflow on a template.
func (h *APIHandlers) AssignWorkflowToTemplate(c fiber.Ctx) error {
	templateID := c.Params("templateId")
	if templateID == "" {
		return badRequest(c, "Template ID is required")
	}

	var req AssignWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	template, err := h.workflowService.AssignToTemplate(c.Context(), c.Params("spaceId"), templateID, req.WorkflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.taskService.Create(c.Context(), c.Params("spaceId"), services.CreateTaskInput{
		Title:      req.Title,
		TemplateID: req.TemplateID,
		WorkflowID: req.WorkflowID,
		Assignee:   req.Assignee,
		DueDate:    req.DueDate,
		Fields:     req.Fields,
	}, c.Get(actorHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	tasks, err := h.taskService.ListBySpace(c.Context(), c.Params("spaceId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	task, err := h.taskService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

// GetAvailableTransitions lists the edges the given user may attempt from the
// task's current status.
func (h *APIHandlers) GetAvailableTransitions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	userID := c.Query("user_id", c.Get(actorHeader))
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	transitions, err := h.engine.Available(c.Context(), id, userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"transitions": transitions})
}

// PerformTransition executes one transition on a task.
func (h *APIHandlers) PerformTransition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	var req PerformTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// Both-empty and both-set are also rejected by the engine's validation;
	// checking here keeps the 400 detail close to the request shape.
	if req.TransitionID != "" && req.TransitionKey != "" {
		return badRequest(c, "transition_id and transition_key are mutually exclusive")
	}

	ref := services.TransitionByID(req.TransitionID)
	if req.TransitionID == "" {
		ref = services.TransitionByKey(req.TransitionKey)
	}

	result, err := h.engine.Perform(c.Context(), services.PerformRequest{
		TaskID:   id,
		Ref:      ref,
		UserID:   req.UserID,
		Metadata: req.Metadata,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetTaskAudit(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Task ID is required")
	}

	records, err := h.auditService.ListByTask(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"records": records})
}

func (h *APIHandlers) GetSpaceAudit(c fiber.Ctx) error {
	opts, err := parseAuditQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	records, err := h.auditService.ListBySpace(c.Context(), c.Params("spaceId"), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"records": records})
}

// parseAuditQuery parses the actor/time-range/limit filters of space audit reads.
func parseAuditQuery(c fiber.Ctx) (*persistence.AuditQueryOptions, error) {
	opts := &persistence.AuditQueryOptions{ActorID: c.Query("actor_id")}

	if sinceStr := c.Query("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return nil, err
		}

		opts.Since = &since
	}

	if untilStr := c.Query("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return nil, err
		}

		opts.Until = &until
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	return opts, nil
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Tasklane API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Tasklane API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
