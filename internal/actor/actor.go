// Package actor carries the caller identity supplied by the excluded
// auth/session layer into the request context. The core consumes the string
// and nothing else.
package actor

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const localsKey = "request_actor"

// Header is where the session layer places the caller identity.
const Header = "X-Actor"

// Default is attributed when no identity is supplied.
const Default = "system"

// Middleware extracts the actor identity from the request header.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// c.Get returns a view into the request buffer, which fiber reuses
		// once the handler returns. The identity outlives the request in
		// timeline entries, so it must be copied out of the buffer.
		identity := utils.CopyString(strings.TrimSpace(c.Get(Header)))
		if identity == "" {
			identity = Default
		}
		c.Locals(localsKey, identity)
		return c.Next()
	}
}

// FromContext returns the actor identity attached to this request.
func FromContext(c *fiber.Ctx) string {
	if identity, ok := c.Locals(localsKey).(string); ok && identity != "" {
		return identity
	}
	return Default
}
