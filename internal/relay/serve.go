package relay

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a websocket and subscribes the
// authenticated user to their change-event stream. JWT validation has
// already happened in middleware; resolveUserID only converts whatever
// the auth layer stored in the context.
func ServeWS(h *Hub, resolveUserID func(echo.Context) (uint64, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := resolveUserID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Printf("relay: upgrade failed for user %d: %v", userID, err)
			return nil
		}
		client := NewClient(h, conn, userID)
		h.RegisterClient(client)
		go client.Serve()
		return nil
	}
}
