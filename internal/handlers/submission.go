package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/karatcart/internal/middleware"
)

// maxSubmissionWait caps GET /cart/submit?wait=true long polls.
const maxSubmissionWait = 25 * time.Second

// Submit freezes prices and hands the order to the jeweler.
func (h *CartHandler) Submit(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	out, err := s.Submit(middleware.RequestContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "data": out})
}

// CancelSubmission withdraws a submission still awaiting the jeweler.
func (h *CartHandler) CancelSubmission(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	out, err := s.CancelSubmission(middleware.RequestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// SubmissionStatus reports the approval cycle. With ?wait=true it blocks
// until the cycle ends or maxSubmissionWait passes.
func (h *CartHandler) SubmissionStatus(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	if !c.QueryBool("wait") {
		return c.JSON(fiber.Map{"success": true, "data": s.SubmissionStatus()})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), maxSubmissionWait)
	defer cancel()

	// WaitSubmission returns the latest snapshot on every path.
	out, _ := s.WaitSubmission(ctx)
	return c.JSON(fiber.Map{"success": true, "data": out})
}
