package requestid

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	id := FromContext(context.Background())
	assert.NotEmpty(t, id) // generates new UUID
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-123")
	assert.Equal(t, "test-123", FromContext(ctx))
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(Get(c) + "|" + FromContext(c.UserContext()))
	})
	return app
}

func TestMiddleware_GeneratesID(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	id := resp.Header.Get(Header)
	assert.Len(t, id, 36)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, id+"|"+id, string(body))
}

func TestMiddleware_PropagatesIncoming(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(Header, "abc-123")
	resp, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(Header))
}

func TestMiddleware_RejectsMalformedIncoming(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(Header, "bad id with spaces")
	resp, err := newApp().Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "bad id with spaces", resp.Header.Get(Header))
	assert.Len(t, resp.Header.Get(Header), 36)
}
