package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/karatcart/internal/middleware"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/ordering"
)

// CartHandler exposes the customer's cart.
type CartHandler struct {
	sessions *ordering.Sessions
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(sessions *ordering.Sessions) *CartHandler {
	return &CartHandler{sessions: sessions}
}

type addCollectionRequest struct {
	ID string `json:"id"`
}

type resolveRequest struct {
	Choice ordering.Resolution `json:"choice"`
}

type quantityRequest struct {
	models.LineRef
	Quantity int `json:"quantity"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type serviceEditRequest struct {
	Jewelry []models.ServiceJewelry `json:"jewelry"`
}

type collectionMethodRequest struct {
	Method models.CollectionMethod `json:"collectionMethod"`
}

func (h *CartHandler) session(c *fiber.Ctx) (*ordering.Session, error) {
	customerID, ok := middleware.GetCurrentCustomerID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return h.sessions.Get(customerID), nil
}

// GetCart loads the pending order and re-prices it at current rates.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	view, err := s.LoadCart(middleware.RequestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": view})
}

// AddJewelry adds a single piece.
func (h *CartHandler) AddJewelry(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req ordering.JewelryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ID) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "id is required")
	}

	res, err := s.AddJewelry(middleware.RequestContext(c), req)
	if err != nil {
		return err
	}
	return writeAddResult(c, res)
}

// AddCollection adds a collection.
func (h *CartHandler) AddCollection(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req addCollectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ID) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "id is required")
	}

	res, err := s.AddCollection(middleware.RequestContext(c), req.ID)
	if err != nil {
		return err
	}
	return writeAddResult(c, res)
}

// AddService adds a service for the customer's own pieces.
func (h *CartHandler) AddService(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req ordering.ServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ID) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "id is required")
	}

	res, err := s.AddService(middleware.RequestContext(c), req)
	if err != nil {
		return err
	}
	return writeAddResult(c, res)
}

// ResolveConflict applies the customer's answer to a shop conflict.
func (h *CartHandler) ResolveConflict(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Choice != ordering.ResolveClearAndAdd && req.Choice != ordering.ResolveCancel {
		return fiber.NewError(fiber.StatusBadRequest, "choice must be clear or cancel")
	}

	res, err := s.ResolveConflict(middleware.RequestContext(c), req.Choice)
	if err != nil {
		return err
	}
	return writeAddResult(c, res)
}

// RemoveLine drops a line from the order.
func (h *CartHandler) RemoveLine(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var ref models.LineRef
	if err := c.BodyParser(&ref); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateRef(ref); err != nil {
		return err
	}

	state, err := s.RemoveLine(middleware.RequestContext(c), ref)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": state})
}

// ChangeQuantity sets the quantity of a product line.
func (h *CartHandler) ChangeQuantity(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req quantityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Kind == "" {
		req.Kind = models.LineKindProduct
	}
	if req.Kind != models.LineKindProduct {
		return fiber.NewError(fiber.StatusBadRequest, "only product lines have a quantity")
	}
	if err := validateRef(req.LineRef); err != nil {
		return err
	}

	state, err := s.ChangeQuantity(middleware.RequestContext(c), req.LineRef, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": state})
}

// UpdateNotes changes the order notes; the write is debounced.
func (h *CartHandler) UpdateNotes(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req notesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	state, err := s.UpdateNotes(middleware.RequestContext(c), req.Notes)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "data": state})
}

// EditServiceLine replaces the pieces attached to a service line.
func (h *CartHandler) EditServiceLine(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req serviceEditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	state, err := s.EditServiceLine(middleware.RequestContext(c), models.Ref(c.Params("id")), req.Jewelry)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "data": state})
}

// SetCollectionMethod switches between delivery and pickup.
func (h *CartHandler) SetCollectionMethod(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req collectionMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	view, err := s.SetCollectionMethod(req.Method)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "data": view})
}

func writeAddResult(c *fiber.Ctx, res ordering.AddResult) error {
	switch res.Outcome {
	case ordering.OutcomeConflict:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "your cart holds items from another shop",
			"data":    res,
		})
	case ordering.OutcomeCreated:
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": res})
	default:
		return c.JSON(fiber.Map{"success": true, "data": res})
	}
}

func validateRef(ref models.LineRef) error {
	if ref.ID.IsZero() {
		return fiber.NewError(fiber.StatusBadRequest, "id is required")
	}
	switch ref.Kind {
	case models.LineKindProduct:
		if !ref.ItemModel.Valid() {
			return ordering.ErrInvalidItemModel
		}
	case models.LineKindService:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "kind must be product or service")
	}
	return nil
}
