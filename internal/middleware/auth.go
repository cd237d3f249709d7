package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Paths reachable without a token.
var exemptPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// AuthMiddleware checks the Authorization header on every request outside
// the exempt set. An empty secret disables authentication entirely.
func AuthMiddleware(secretKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secretKey == "" || exemptPaths[c.Path()] {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		splits := strings.Split(authHeader, " ")
		if len(splits) != 2 || splits[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
		}

		if _, err := VerifyToken(secretKey, splits[1]); err != nil {
			return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
		}

		return c.Next()
	}
}
