package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/karatcart/internal/config"
	"github.com/example/karatcart/internal/handlers"
	"github.com/example/karatcart/internal/middleware"
	"github.com/example/karatcart/internal/ordering"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, cfg *config.Config, reconciler *ordering.Reconciler, sessions *ordering.Sessions) {
	priceHandler := handlers.NewPriceHandler(reconciler)
	cartHandler := handlers.NewCartHandler(sessions)

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "sessions": sessions.Len()})
	})

	// Public pricing
	api.Get("/rates", priceHandler.Rates)
	api.Get("/prices/jewelry/:id", priceHandler.JewelryPrice)
	api.Get("/prices/collections/:id", priceHandler.CollectionPrice)

	// Marketplace callbacks, enabled when a shared secret is configured
	if cfg.WebhookSecret != "" {
		webhookHandler := handlers.NewWebhookHandler(sessions)
		hooks := api.Group("/webhooks", middleware.WebhookSecret(cfg.WebhookSecret))
		hooks.Post("/order-decision", webhookHandler.OrderDecision)
	}

	// Protected routes
	cart := api.Group("/cart", middleware.AuthMiddleware(cfg))

	cart.Get("/", cartHandler.GetCart)
	cart.Post("/jewelry", cartHandler.AddJewelry)
	cart.Post("/collections", cartHandler.AddCollection)
	cart.Post("/services", cartHandler.AddService)
	cart.Post("/resolve", cartHandler.ResolveConflict)

	cart.Delete("/lines", cartHandler.RemoveLine)
	cart.Put("/lines/quantity", cartHandler.ChangeQuantity)
	cart.Put("/notes", cartHandler.UpdateNotes)
	cart.Put("/services/:id", cartHandler.EditServiceLine)
	cart.Put("/collection-method", cartHandler.SetCollectionMethod)

	cart.Post("/submit", cartHandler.Submit)
	cart.Post("/submit/cancel", cartHandler.CancelSubmission)
	cart.Get("/submit", cartHandler.SubmissionStatus)
}
