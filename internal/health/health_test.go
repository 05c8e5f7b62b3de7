package health

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", Liveness)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "ok")
}

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusOK })
	c.Register("cache", func(ctx context.Context) Status { return StatusOK })

	assert.True(t, c.IsReady(context.Background()))
	assert.Len(t, c.Last(), 2)
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusOK })
	c.Register("cache", func(ctx context.Context) Status { return StatusDown })

	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_Degraded_StillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
}

func readiness(t *testing.T, c *Checker) (*http.Response, string) {
	t.Helper()
	app := fiber.New()
	app.Get("/readyz", c.Readiness)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestReadiness_Healthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("svc", func(ctx context.Context) Status { return StatusOK })

	resp, body := readiness(t, c)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"ready"`)
}

func TestReadiness_NotReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("svc", func(ctx context.Context) Status { return StatusDown })

	resp, body := readiness(t, c)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "not_ready")
}

func TestDirWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	assert.Equal(t, StatusOK, DirWritable(dir)(context.Background()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Equal(t, StatusDown, DirWritable(filepath.Join(file, "sub"))(context.Background()))
}

func TestSkillsAvailable(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, StatusDegraded, SkillsAvailable([]string{root})(context.Background()))

	dir := filepath.Join(root, "pm-prd")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("---\nname: pm-prd\ndescription: d\n---\n"), 0o644))
	assert.Equal(t, StatusOK, SkillsAvailable([]string{root})(context.Background()))
}

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

func TestPing(t *testing.T) {
	assert.Equal(t, StatusOK, Ping(pinger{})(context.Background()))
	assert.Equal(t, StatusDown, Ping(pinger{err: errors.New("closed")})(context.Background()))
}
