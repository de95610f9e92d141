package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/karatcart/internal/approval"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/ordering"
)

// WebhookHandler receives marketplace callbacks.
type WebhookHandler struct {
	sessions *ordering.Sessions
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(sessions *ordering.Sessions) *WebhookHandler {
	return &WebhookHandler{sessions: sessions}
}

type orderDecisionRequest struct {
	CustomerID string             `json:"customerId"`
	OrderID    string             `json:"orderId"`
	Status     models.OrderStatus `json:"status"`
}

// OrderDecision resolves a waiting submission as soon as the jeweler
// answers instead of at the next poll.
func (h *WebhookHandler) OrderDecision(c *fiber.Ctx) error {
	var req orderDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.CustomerID == "" || req.OrderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "customerId and orderId are required")
	}

	s, ok := h.sessions.Lookup(req.CustomerID)
	if !ok {
		return approval.ErrNotWaiting
	}
	out, err := s.RecordDecision(req.OrderID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}
