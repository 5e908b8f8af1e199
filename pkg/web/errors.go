package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/tasklane/tasklane/pkg/persistence"
	"github.com/tasklane/tasklane/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps typed service errors onto RFC-7807 responses.
// The transition engine's failure modes each carry a distinct status so
// clients can tell a retryable conflict (409) from a rejected move (404, 403,
// 422) without parsing detail strings.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsGuardFailed(err):
		guardErr, _ := services.AsGuardError(err)
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("guard_failed").
			WithDetail(guardErr.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case services.IsPermissionDenied(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("permission_denied").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case persistence.IsConcurrentModification(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("concurrent_modification").
			WithDetail("task was modified concurrently, re-read and retry")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsWorkflowInUse(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("workflow_in_use").
			WithDetail("workflow is referenced by existing tasks")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsTransitionNotFound(err):
		return notFound(c, "transition_not_found", "transition not found or not legal from the task's current status")

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case persistence.IsTaskNotFound(err):
		return notFound(c, "task_not_found", "task not found")

	case persistence.IsTemplateNotFound(err):
		return notFound(c, "template_not_found", "task template not found")

	default:
		return internalError(c, err)
	}
}
