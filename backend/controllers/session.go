package controllers

import (
	"biblequiz/backend/engine"
	"biblequiz/backend/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionHeader carries the opaque session id that keys lifecycle engines.
// A request without one gets a fresh id echoed back in the response.
const SessionHeader = "X-Session-ID"

func ensureSessionID(c *fiber.Ctx) string {
	sessionID := c.Get(SessionHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c.Set(SessionHeader, sessionID)
	return sessionID
}

// resolveEngine returns the session's lifecycle engine with the request's
// identity (token or anonymous) applied.
func resolveEngine(c *fiber.Ctx, manager *engine.Manager) (*engine.Engine, string, error) {
	sessionID := ensureSessionID(c)
	userID, identified := middleware.UserID(c)
	eng, err := manager.Resolve(c.Context(), sessionID, userID, identified)
	return eng, sessionID, err
}
