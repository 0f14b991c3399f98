package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes serves a user's drive events over websocket. authMiddleware
// must set user_id in locals; only that user may subscribe to their stream.
func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws/:userID", authMiddleware, requireOwner, websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("userID"))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		// the read side only watches for the client going away
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}

func requireOwner(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing user")
	}
	if userID != c.Params("userID") {
		return fiber.NewError(fiber.StatusForbidden, "stream belongs to another user")
	}
	return c.Next()
}
