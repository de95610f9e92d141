package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// WebhookSecretHeader carries the shared secret on marketplace callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret rejects callbacks that do not present the shared secret.
func WebhookSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(WebhookSecretHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook secret")
		}
		return c.Next()
	}
}
