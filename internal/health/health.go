// Package health provides liveness and readiness probes for the dashboard.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/skillforge/internal/skill"
)

// Status represents the health status of a dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

const checkTimeout = 5 * time.Second

// CheckFunc is a function that checks a dependency's health.
type CheckFunc func(ctx context.Context) Status

// Checker manages health checks for all dependencies.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	cache  map[string]Status
	logger zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		cache:  make(map[string]Status),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes all health checks concurrently and caches results.
func (c *Checker) RunAll(ctx context.Context) map[string]Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make(map[string]Status, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			s := f(checkCtx)
			if s != StatusOK {
				c.logger.Warn().Str("check", n).Str("status", string(s)).Msg("health check not ok")
			}
			mu.Lock()
			results[n] = s
			mu.Unlock()
		}(name, fn)
	}

	wg.Wait()

	c.mu.Lock()
	c.cache = results
	c.mu.Unlock()

	return results
}

// Last returns the results of the most recent RunAll.
func (c *Checker) Last() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Status, len(c.cache))
	for k, v := range c.cache {
		out[k] = v
	}
	return out
}

// IsReady returns true if no check is down.
func (c *Checker) IsReady(ctx context.Context) bool {
	return ready(c.RunAll(ctx))
}

func ready(results map[string]Status) bool {
	for _, s := range results {
		if s == StatusDown {
			return false
		}
	}
	return true
}

// Liveness answers /healthz.
func Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness answers /readyz.
func (c *Checker) Readiness(ctx *fiber.Ctx) error {
	results := c.RunAll(ctx.UserContext())
	if ready(results) {
		return ctx.JSON(fiber.Map{"status": "ready", "checks": results})
	}
	return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready", "checks": results})
}

// DirWritable is down when dir cannot be created or written to.
func DirWritable(dir string) CheckFunc {
	return func(context.Context) Status {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return StatusDown
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return StatusDown
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		return StatusOK
	}
}

// SkillsAvailable is degraded when no skill can be discovered under roots.
// Requests may still bring their own skill directories.
func SkillsAvailable(roots []string) CheckFunc {
	return func(context.Context) Status {
		if len(skill.Discover(roots).Skills) == 0 {
			return StatusDegraded
		}
		return StatusOK
	}
}

// Pinger is anything with a liveness ping, such as the run catalog.
type Pinger interface {
	Ping() error
}

// Ping is down when p fails to ping.
func Ping(p Pinger) CheckFunc {
	return func(context.Context) Status {
		if err := p.Ping(); err != nil {
			return StatusDown
		}
		return StatusOK
	}
}
