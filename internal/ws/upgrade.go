package ws

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const localTurn = "ws_turn"

// Upgrade guards the websocket route. A "turn" query parameter subscribes the
// connection to that turn's room as soon as it opens, so no join message is
// needed before the chat request is sent.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if turn := c.Query("turn"); turn != "" {
			c.Locals(localTurn, strings.Clone(turn))
		}
		return c.Next()
	}
}

// initialRoom returns the room requested at upgrade time, if any.
func initialRoom(c *websocket.Conn) string {
	turn, _ := c.Locals(localTurn).(string)
	if turn == "" {
		return ""
	}
	return RoomTurn + turn
}
