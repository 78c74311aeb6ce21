package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/rules"
	"github.com/jask/jaskledger/internal/service"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInvalidRule),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, rules.ErrInvalidPattern):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNotAmbiguous),
		errors.Is(err, service.ErrRuleNotApplicable),
		errors.Is(err, repository.ErrAlreadyCategorized):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		msg = "internal error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}
