package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
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

// handleDomainError maps domain errors to HTTP problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("workflow_not_found").
			WithDetail("workflow not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsExecutionNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("execution_not_found").
			WithDetail("execution not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case errors.Is(err, ledger.ErrInsufficientBalance):
		problem := problems.NewStatusProblem(402).
			WithInstance(c.Path()).
			WithType("insufficient_balance").
			WithDetail(err.Error())

		return c.Status(fiber.StatusPaymentRequired).JSON(problem)

	case errors.Is(err, protocol.ErrInvalidNodeConfig),
		errors.Is(err, protocol.ErrUnsupportedNodeType),
		errors.Is(err, workflow.ErrInvalidWorkflow),
		errors.Is(err, workflow.ErrNoInputNode),
		errors.Is(err, workflow.ErrMultipleInputNodes),
		errors.Is(err, workflow.ErrUnknownNode):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
