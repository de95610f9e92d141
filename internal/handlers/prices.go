package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/karatcart/internal/middleware"
	"github.com/example/karatcart/internal/ordering"
	"github.com/example/karatcart/internal/pricing"
)

// PriceHandler serves live rates and item prices for product pages.
type PriceHandler struct {
	reconciler *ordering.Reconciler
}

// NewPriceHandler constructs PriceHandler.
func NewPriceHandler(reconciler *ordering.Reconciler) *PriceHandler {
	return &PriceHandler{reconciler: reconciler}
}

type priceResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Shop      string  `json:"shop,omitempty"`
	Price     float64 `json:"price"`
	Formatted string  `json:"formatted"`
}

// Rates returns the current metal rate table. It never fails; stale or
// fallback rates are served when the provider is down.
func (h *PriceHandler) Rates(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": h.reconciler.Rates(c.UserContext())})
}

// JewelryPrice prices one piece at current rates.
func (h *PriceHandler) JewelryPrice(c *fiber.Ctx) error {
	j, price, err := h.reconciler.QuoteJewelry(middleware.RequestContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": priceResponse{
		ID:        j.ID,
		Name:      j.Name,
		Shop:      j.Shop.String(),
		Price:     pricing.Round2(price),
		Formatted: pricing.FormatMoney(price, ""),
	}})
}

// CollectionPrice prices a collection at current rates.
func (h *PriceHandler) CollectionPrice(c *fiber.Ctx) error {
	col, price, err := h.reconciler.QuoteCollection(middleware.RequestContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": priceResponse{
		ID:        col.ID,
		Name:      col.Name,
		Shop:      col.Shop.String(),
		Price:     pricing.Round2(price),
		Formatted: pricing.FormatMoney(price, ""),
	}})
}
