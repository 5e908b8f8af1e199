// Package main provides the Tasklane API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/tasklane/tasklane/pkg/eventbus"
	"github.com/tasklane/tasklane/pkg/guards"
	"github.com/tasklane/tasklane/pkg/permissions"
	"github.com/tasklane/tasklane/pkg/persistence"
	"github.com/tasklane/tasklane/pkg/services"
	"github.com/tasklane/tasklane/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	oracle      permissions.Oracle
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

// NewAPI wires the API server. A nil tracer falls back to the global
// (no-op by default) tracer provider.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	oracle permissions.Oracle,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		oracle:      oracle,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	registry := guards.NewRegistry(a.logger)

	workflowService := services.NewWorkflowService(a.persistence, registry, a.eventBus, a.logger)
	taskService := services.NewTaskService(a.persistence, a.eventBus, a.logger)
	templateService := services.NewTemplateService(a.persistence, a.logger)
	auditService := services.NewAuditService(a.persistence, a.logger)
	engine := services.NewTransitionEngine(a.persistence, a.oracle, registry, a.eventBus, a.tracer, a.logger)

	handlers := web.NewAPIHandlers(workflowService, taskService, templateService, auditService, engine, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Tasklane API")
	})

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

	t := app.Group("/tasks")
	t.Get("/:id", handlers.GetTask)
	t.Get("/:id/transitions", handlers.GetAvailableTransitions)
	t.Post("/:id/transitions", handlers.PerformTransition)
	t.Get("/:id/audit", handlers.GetTaskAudit)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
