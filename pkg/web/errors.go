package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/adopshq/adflow/pkg/coordinator"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/steps/create"
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

func conflict(c fiber.Ctx, errType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps domain errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var validationErr *create.ValidationError

	switch {
	case errors.As(err, &validationErr):
		// Every violation ships in one response so the caller can fix the
		// whole draft at once.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"type":       "validation_error",
			"title":      "Bad Request",
			"status":     fiber.StatusBadRequest,
			"detail":     "campaign draft is invalid",
			"instance":   c.Path(),
			"violations": validationErr.Violations,
		})

	case persistence.IsRunAlreadyActive(err):
		return conflict(c, "run_already_active", "campaign already has an active run")

	case persistence.IsVersionConflict(err):
		return conflict(c, "conflict", "run was modified concurrently, retry")

	case errors.Is(err, persistence.ErrRunTerminal):
		return conflict(c, "run_terminal", "run has already finished")

	case errors.Is(err, coordinator.ErrRunNotSuspended):
		return conflict(c, "run_not_suspended", "run is not suspended")

	case errors.Is(err, coordinator.ErrUnknownGraph):
		return badRequest(c, err.Error())

	case persistence.IsRunNotFound(err):
		return notFound(c, "run not found")

	case persistence.IsCampaignNotFound(err):
		return notFound(c, "campaign not found")

	case persistence.IsAlertNotFound(err):
		return notFound(c, "alert not found")

	default:
		return internalError(c, err)
	}
}
