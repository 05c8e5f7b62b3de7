package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/skillforge/internal/catalog"
	"github.com/p-blackswan/skillforge/internal/dashboard"
	"github.com/p-blackswan/skillforge/internal/health"
	"github.com/p-blackswan/skillforge/internal/launcher"
	"github.com/p-blackswan/skillforge/internal/metrics"
	"github.com/p-blackswan/skillforge/internal/runstore"
)

const retentionEvery = time.Hour

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.DashboardAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from DASHBOARD_ADDR)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger
	roots := cfg.SkillRoots()

	logger.Info().
		Str("environment", cfg.Environment).
		Str("addr", cfg.DashboardAddr).
		Str("runs_dir", cfg.RunsDir).
		Bool("catalog_enabled", cfg.CatalogEnabled()).
		Msg("starting skillforge dashboard")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	checker := health.NewChecker(logger)
	checker.Register("runs_dir", health.DirWritable(cfg.RunsDir))
	checker.Register("skills", health.SkillsAvailable(roots))

	var cat *catalog.Store
	if cfg.CatalogEnabled() {
		var err error
		cat, err = catalog.New(cfg.CatalogPath, logger)
		if err != nil {
			return err
		}
		defer cat.Close()

		if n, err := cat.FailStuckRuns(); err != nil {
			logger.Warn().Err(err).Msg("failed to recover stuck runs")
		} else if n > 0 {
			logger.Info().Int64("count", n).Msg("marked interrupted runs as failed")
		}
		checker.Register("catalog", health.Ping(cat))
		go a.retentionLoop(ctx, cat)
	} else {
		logger.Info().Msg("run catalog not configured, skipping")
	}

	ln := launcher.New(launcher.Config{
		RunsDir:         cfg.RunsDir,
		SkillRoots:      roots,
		MaxConcurrent:   cfg.MaxConcurrentRuns,
		ProviderTimeout: cfg.ProviderTimeout,
	}, a.providers(), logger)
	ln.SetCatalog(cat)
	ln.SetMetrics(m)

	handlers := dashboard.NewHandlers(runstore.New(cfg.RunsDir, cfg.MaxPreviewBytes), ln, roots, logger)
	if cat != nil {
		handlers.SetCatalog(cat)
	}
	handlers.SetStreamConfig(dashboard.StreamConfig{PollInterval: cfg.StreamPollInterval})

	srv := dashboard.NewServer(dashboard.ServerConfig{
		ListenAddr:  cfg.DashboardAddr,
		CORSOrigins: cfg.CORSOrigins,
		APIKey:      cfg.DashboardAPIKey,
		RateLimit: dashboard.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	}, handlers, checker, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("dashboard shutdown error")
	}

	done := make(chan struct{})
	go func() {
		ln.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info().Msg("all runs finished")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown with runs in flight")
	}

	logger.Info().Msg("skillforge dashboard stopped")
	return nil
}

func (a *app) retentionLoop(ctx context.Context, cat *catalog.Store) {
	if a.cfg.CatalogRetention <= 0 {
		return
	}
	ticker := time.NewTicker(retentionEvery)
	defer ticker.Stop()
	for {
		if err := cat.RunRetention(ctx, a.cfg.CatalogRetention); err != nil && ctx.Err() == nil {
			a.logger.Warn().Err(err).Msg("catalog retention failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
