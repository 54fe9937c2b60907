package api

import (
	"log"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/modules/presence"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

var errSocketIdentity = apperr.Authorization("userId does not match the session")

// PresenceRegistry tracks live connections per user.
type PresenceRegistry interface {
	Connect(userID string, conn presence.Conn)
	Disconnect(userID string, conn presence.Conn) bool
}

// upgradeGate rejects plain HTTP requests on the websocket path.
func upgradeGate(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// socketIdentity requires the userId query parameter, when present, to
// name the session user.
func socketIdentity(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return writeError(c, errNoToken)
	}
	if id := c.Query("userId"); id != "" && id != user.ID {
		return writeError(c, errSocketIdentity)
	}
	return c.Next()
}

// socketHandler registers the connection for the session user and holds
// it until the client goes away. Clients only listen; inbound frames are
// discarded.
func socketHandler(registry PresenceRegistry) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		user, ok := c.Locals(UserContextKey).(*domain.Profile)
		if !ok || user == nil {
			_ = c.Close()
			return
		}

		registry.Connect(user.ID, c)
		defer func() {
			registry.Disconnect(user.ID, c)
			_ = c.Close()
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[api] websocket error for user %s: %v", user.ID, err)
				}
				return
			}
		}
	}
}
