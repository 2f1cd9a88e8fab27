package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Respond writes the JSON error body for an operation failure, carrying the
// reason code so clients can tell validation, conflict and state errors apart.
func Respond(c *fiber.Ctx, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal",
			"message": err.Error(),
		})
	}

	status := fiber.StatusInternalServerError
	switch e.Kind {
	case KindValidation:
		status = fiber.StatusBadRequest
	case KindConflict:
		status = fiber.StatusConflict
	case KindInvalidState:
		status = fiber.StatusUnprocessableEntity
	case KindNotFound:
		status = fiber.StatusNotFound
	case KindTransientIO:
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   e.Code,
		"message": e.Msg,
	})
}
