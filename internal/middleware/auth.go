package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/karatcart/internal/config"
	"github.com/example/karatcart/internal/services"
	"github.com/example/karatcart/internal/utils"
)

const (
	customerContextKey = "currentCustomerID"
	tokenContextKey    = "currentBearerToken"
)

// AuthMiddleware validates JWT tokens and loads the authenticated customer ID
// and the raw token into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		token := strings.TrimSpace(parts[1])
		customerID, err := utils.ParseToken(cfg.JWTSecret, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(customerContextKey, customerID)
		c.Locals(tokenContextKey, token)
		return c.Next()
	}
}

// GetCurrentCustomerID extracts the authenticated customer ID from context.
func GetCurrentCustomerID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(customerContextKey).(string)
	return id, ok && id != ""
}

// RequestContext returns the request's context carrying the customer's
// bearer token, so marketplace calls act on the customer's behalf.
func RequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if token, ok := c.Locals(tokenContextKey).(string); ok && token != "" {
		ctx = services.WithBearerToken(ctx, token)
	}
	return ctx
}
