package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/minerva-erp/osflow/pkg/services"
	"github.com/minerva-erp/osflow/pkg/steps"
	"github.com/moogar0880/problems"
)

// ValidationProblem is a problem document carrying field-level errors.
type ValidationProblem struct {
	*problems.Problem

	Errors []steps.FieldError `json:"errors,omitempty"`
}

// requestError is a malformed request detected before the workflow is called.
type requestError struct {
	status int
	detail string
	fields []steps.FieldError
}

func (e *requestError) Error() string {
	return e.detail
}

func requestFailed(c fiber.Ctx, err error) error {
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		return internalError(c, err)
	}

	switch reqErr.status {
	case fiber.StatusUnauthorized:
		return unauthenticated(c, reqErr.detail)
	case fiber.StatusUnprocessableEntity:
		return unprocessable(c, reqErr.detail, reqErr.fields)
	default:
		return badRequest(c, reqErr.detail)
	}
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("bad_request").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthenticated(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthenticated").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func unprocessable(c fiber.Ctx, detail string, fields []steps.FieldError) error {
	problem := ValidationProblem{
		Problem: problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(detail),
		Errors: fields,
	}

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps workflow errors to problem documents.
func handleServiceError(c fiber.Ctx, err error) error {
	var validationErr *services.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return unprocessable(c, validationErr.Message, validationErr.Fields)

	case services.IsAuthorizationError(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("forbidden").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case services.IsConcurrencyConflict(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("concurrency_conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsPreconditionError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("precondition_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsCollaboratorFailure(err):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("collaborator_failure").
			WithDetail(err.Error())

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	case errors.Is(err, services.ErrOrderNotFound):
		return notFound(c, "order not found")

	case errors.Is(err, services.ErrApprovalItemNotFound):
		return notFound(c, "approval item not found")

	default:
		return internalError(c, err)
	}
}
