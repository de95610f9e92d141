package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/karatcart/internal/approval"
	"github.com/example/karatcart/internal/ordering"
	"github.com/example/karatcart/internal/services"
)

// ErrorHandler renders every error as {"success":false,"message":...} and
// logs server-side failures.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := statusFor(err)
		message := err.Error()

		var fe *fiber.Error
		if errors.As(err, &fe) {
			message = fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
			if status == fiber.StatusInternalServerError {
				message = "internal server error"
			}
		}

		return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
	}
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch {
	case errors.Is(err, ordering.ErrNoOrder),
		errors.Is(err, ordering.ErrLineNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ordering.ErrInvalidQuantity),
		errors.Is(err, ordering.ErrInvalidItemModel),
		errors.Is(err, approval.ErrNotADecision):
		return fiber.StatusBadRequest
	case errors.Is(err, ordering.ErrNoPendingConflict),
		errors.Is(err, ordering.ErrAwaitingApproval),
		errors.Is(err, approval.ErrAlreadyWaiting),
		errors.Is(err, approval.ErrNotWaiting):
		return fiber.StatusConflict
	case errors.Is(err, ordering.ErrUnpriceable):
		return fiber.StatusUnprocessableEntity
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == fiber.StatusNotFound {
			return fiber.StatusNotFound
		}
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
