package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// HeaderName carries the RayID on requests and responses.
	HeaderName = "X-Ray-ID"
	// LocalsKey is where the RayID is stored on the Fiber context.
	LocalsKey = "ray_id"
)

// New returns a middleware that assigns every request a RayID. An incoming
// X-Ray-ID header is reused; otherwise a UUID is generated.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalsKey, id)
		c.Set(HeaderName, id)
		return c.Next()
	}
}
