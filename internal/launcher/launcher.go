// Package launcher starts mission runs in the background on behalf of the
// dashboard. The caller gets a run id immediately; failures land in the
// run's RUN_ERROR.txt and the catalog.
package launcher

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/p-blackswan/skillforge/internal/catalog"
	perrors "github.com/p-blackswan/skillforge/internal/errors"
	"github.com/p-blackswan/skillforge/internal/llm"
	"github.com/p-blackswan/skillforge/internal/metrics"
	"github.com/p-blackswan/skillforge/internal/orchestrator"
	"github.com/p-blackswan/skillforge/internal/rundir"
	"github.com/p-blackswan/skillforge/internal/skill"
)

// Request describes a run to launch.
type Request struct {
	Mission   string   `json:"mission"`
	Provider  string   `json:"provider"`
	Model     string   `json:"model,omitempty"`
	SkillDirs []string `json:"skill_dir"`
}

// Config holds launcher settings.
type Config struct {
	RunsDir         string
	SkillRoots      []string
	MaxConcurrent   int
	ProviderTimeout time.Duration
}

// ProviderFactory builds a provider from a selector and model.
type ProviderFactory interface {
	New(selector, model string) (llm.Provider, error)
}

// Launcher runs missions on detached goroutines, at most MaxConcurrent at a
// time. Runs beyond the limit wait in their own goroutine.
type Launcher struct {
	cfg       Config
	providers ProviderFactory
	sem       *semaphore.Weighted
	catalog   *catalog.Store
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	wg        sync.WaitGroup
	newID     func() string
}

// New creates a launcher.
func New(cfg Config, providers ProviderFactory, logger zerolog.Logger) *Launcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Launcher{
		cfg:       cfg,
		providers: providers,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:    logger.With().Str("component", "launcher").Logger(),
		newID:     rundir.NewID,
	}
}

// SetCatalog sets the optional run catalog.
func (l *Launcher) SetCatalog(c *catalog.Store) {
	l.catalog = c
}

// SetMetrics sets Prometheus metrics.
func (l *Launcher) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// Launch validates req, allocates the run directory and starts the run in
// the background. Validation errors are returned synchronously: an empty
// mission is ErrInvalidInput, no discoverable skills is ErrNoSkills, and
// provider selection errors pass through from the factory.
func (l *Launcher) Launch(req Request) (string, error) {
	mission := strings.TrimSpace(req.Mission)
	if mission == "" {
		return "", fmt.Errorf("mission is required: %w", perrors.ErrInvalidInput)
	}

	roots := append(append([]string{}, l.cfg.SkillRoots...), req.SkillDirs...)
	report := skill.Discover(roots)
	index := report.Index()
	if index.Len() == 0 {
		return "", fmt.Errorf("no skills under %v: %w", roots, perrors.ErrNoSkills)
	}

	provider, err := l.providers.New(req.Provider, req.Model)
	if err != nil {
		return "", err
	}

	runID := l.newID()
	layout := rundir.New(l.cfg.RunsDir, runID)
	if err := os.MkdirAll(layout.Workspace(), 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	if l.catalog != nil {
		if err := l.catalog.SaveRun(&catalog.Run{
			ID:       runID,
			Mission:  req.Mission,
			Provider: req.Provider,
			Model:    req.Model,
			Status:   catalog.StatusPending,
		}); err != nil {
			l.logger.Warn().Err(err).Str("run_id", runID).Msg("catalog save failed")
		}
	}

	orch := orchestrator.New(index, provider,
		orchestrator.WithMetrics(l.metrics),
		orchestrator.WithProviderTimeout(l.cfg.ProviderTimeout),
		orchestrator.WithLogger(l.logger),
	)

	l.wg.Add(1)
	go l.run(orch, req.Mission, layout)

	l.logger.Info().
		Str("run_id", runID).
		Str("provider", req.Provider).
		Int("skills", index.Len()).
		Msg("run launched")
	return runID, nil
}

// run owns one background run. Runs are not cancellable once started.
func (l *Launcher) run(orch *orchestrator.Orchestrator, mission string, layout rundir.Layout) {
	defer l.wg.Done()
	ctx := context.Background()
	runID := layout.ID()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		l.fail(layout, err)
		return
	}
	defer l.sem.Release(1)

	if l.catalog != nil {
		if err := l.catalog.MarkRunning(runID); err != nil {
			l.logger.Warn().Err(err).Str("run_id", runID).Msg("catalog update failed")
		}
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error().
					Str("run_id", runID).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("run panicked")
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		_, err = orch.Run(ctx, mission, layout)
		return err
	}()

	if err != nil {
		l.fail(layout, err)
		return
	}
	if l.catalog != nil {
		if err := l.catalog.CompleteRun(runID, ""); err != nil {
			l.logger.Warn().Err(err).Str("run_id", runID).Msg("catalog update failed")
		}
	}
}

func (l *Launcher) fail(layout rundir.Layout, cause error) {
	runID := layout.ID()
	l.metrics.RecordError("launcher", "run_failed")
	if err := os.WriteFile(layout.Error(), []byte(cause.Error()), 0o644); err != nil {
		l.logger.Error().Err(err).Str("run_id", runID).Msg("write run error failed")
	}
	if l.catalog != nil {
		if err := l.catalog.CompleteRun(runID, cause.Error()); err != nil {
			l.logger.Warn().Err(err).Str("run_id", runID).Msg("catalog update failed")
		}
	}
}

// Wait blocks until every launched run has finished.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
