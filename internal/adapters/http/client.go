package http

import (
	"fmt"
	"regexp"

	"github.com/gofiber/fiber/v2"
)

const (
	// HeaderClientID identifies the browser whose map state a request
	// reads or changes.
	HeaderClientID  = "X-Client-ID"
	defaultClientID = "default"
)

// Client ids end up in Valkey keys and NATS subjects, so no dots,
// wildcards or spaces.
var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// clientID resolves the calling client from the X-Client-ID header, then
// the client query parameter, then "default".
func clientID(c *fiber.Ctx) (string, error) {
	id := c.Get(HeaderClientID)
	if id == "" {
		id = c.Query("client")
	}
	if id == "" {
		return defaultClientID, nil
	}
	if !clientIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid client id %q", id)
	}
	return id, nil
}

// ClientIDMiddleware rejects malformed client ids and stores the resolved
// id in Locals("client_id").
func ClientIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := clientID(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		c.Locals("client_id", id)
		return c.Next()
	}
}

// clientFrom returns the id stored by ClientIDMiddleware.
func clientFrom(c *fiber.Ctx) string {
	if id, ok := c.Locals("client_id").(string); ok && id != "" {
		return id
	}
	return defaultClientID
}
