package handlers

import (
	"errors"
	"log"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/utils"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders errors returned by handlers as {"error": ...} with a status
// derived from the domain error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		log.Printf("handlers: %s %s failed: %v", c.Method(), c.Path(), err)
		msg = "Internal server error"
	}

	return utils.ErrorResponse(c, code, msg)
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, models.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrSelfVote):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrDuplicateSubmission),
		errors.Is(err, models.ErrAlreadyVoted),
		errors.Is(err, models.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
