package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware guards the event streams with a `token` query param
// (EventSource cannot set headers). When SSE_TOKEN is unset the streams are
// public — the ranking and news views carry nothing sensitive by default.
func SSEAuthMiddleware() fiber.Handler {
	expected := os.Getenv("SSE_TOKEN")

	return func(c *fiber.Ctx) error {
		if expected == "" {
			return c.Next()
		}
		token := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("token")))
		if token != expected {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing stream token",
			})
		}
		return c.Next()
	}
}
