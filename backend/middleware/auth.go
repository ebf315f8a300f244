package middleware

import (
	"biblequiz/backend/config"
	"biblequiz/backend/utils"

	"github.com/gofiber/fiber/v2"
)

const userIDKey = "user_id"

// AuthMiddleware rejects requests without a valid token
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := utils.ExtractUserIDFromToken(c, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// OptionalAuth resolves identity without requiring it. Requests with no token
// or an invalid token proceed as anonymous; a valid token attaches the user id.
// This is the seam the attempt lifecycle engine reads identity from.
func OptionalAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, err := utils.ExtractUserIDFromToken(c, cfg); err == nil {
			c.Locals(userIDKey, userID)
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id attached by the middleware,
// or (0, false) for anonymous requests.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(userIDKey).(uint)
	return id, ok
}
