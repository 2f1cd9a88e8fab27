package stream

import (
	"backend-buswatch/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes exposes the viewer websocket. The browser websocket API
// cannot set headers, so the JWT rides in a query parameter.
func RegisterRoutes(r fiber.Router, hub *Hub, authSvc *auth.Service) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		userID, _, err := authSvc.ValidateAccessToken(c.Query("token"))
		if err != nil {
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"))
			_ = c.Close()
			return
		}

		client := hub.Register(userID)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}

		// Closing the send channel lets the writer drain and exit.
		hub.Unregister(client)
		<-done
	}))
}
