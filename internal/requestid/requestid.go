// Package requestid provides request ID propagation for the dashboard.
package requestid

import (
	"context"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

// LocalsKey is the fiber Locals key holding the id.
const LocalsKey = "request_id"

var acceptable = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

type ctxKey struct{}

// WithRequestID returns a context with the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from context, or generates a new one.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// New generates a new request ID and returns the enriched context and ID.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return WithRequestID(ctx, id), id
}

// Middleware reuses a well-formed incoming X-Request-ID or mints one, then
// exposes it through the response header, Locals and the user context.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Header values alias the request buffer.
		id := strings.Clone(c.Get(Header))
		var ctx context.Context
		if acceptable.MatchString(id) {
			ctx = WithRequestID(c.UserContext(), id)
		} else {
			ctx, id = New(c.UserContext())
		}
		c.SetUserContext(ctx)
		c.Set(Header, id)
		c.Locals(LocalsKey, id)
		return c.Next()
	}
}

// Get returns the id stored by Middleware, or "".
func Get(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalsKey).(string)
	return id
}
