package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/helmet/v2"
)

// SecureHeaders sets API-oriented security headers: nothing is served that a
// browser should render or embed.
func SecureHeaders() fiber.Handler {
	return helmet.New(helmet.Config{
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none'",
		CrossOriginResourcePolicy: "cross-origin",
		Filter: func(c *fiber.Ctx) bool {
			// the websocket handshake must not carry CORP/COEP headers
			return c.Path() == "/ws"
		},
	})
}
