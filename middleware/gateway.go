package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceTokenAuth guards internal routes with a shared service token sent as
// X-Service-Token or "Authorization: Bearer <token>". An empty expected token
// disables the routes entirely.
func ServiceTokenAuth(expectedToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "not found"})
		}

		token := c.Get("X-Service-Token")
		if token == "" {
			token = strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))
		}
		if token == "" {
			log.Printf("[SERVICE_AUTH] missing service token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "service token missing",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Printf("[SERVICE_AUTH] invalid service token for %s (got prefix: %.6s...)", c.Path(), token)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "invalid service token",
			})
		}
		return c.Next()
	}
}
