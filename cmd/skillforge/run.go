package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
	"github.com/p-blackswan/skillforge/internal/orchestrator"
	"github.com/p-blackswan/skillforge/internal/rundir"
	"github.com/p-blackswan/skillforge/internal/skill"
)

type runOptions struct {
	provider  string
	model     string
	skillDirs []string
	out       string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <mission|file>",
		Short: "Run a mission and generate artifacts into a per-run workspace",
		Long: `Run a mission and generate artifacts into a per-run workspace.

The argument is the mission text, or a path to a file holding it. A .yml or
.yaml file must carry a top-level "mission" field; any other file is used
whole.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runMission(ctx, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "completion provider: mock | openai (default from PROVIDER)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name for the openai provider (default from OPENAI_MODEL / SCOS_MODEL)")
	cmd.Flags().StringArrayVar(&opts.skillDirs, "skill-dir", nil, "additional skill root to scan (repeatable)")
	cmd.Flags().StringVar(&opts.out, "out", "", "run directory (default: $RUNS_DIR/<run_id>)")
	return cmd
}

// resolveMission returns the mission named by arg: the contents of the file
// at arg if one exists, else arg itself.
func resolveMission(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || !info.Mode().IsRegular() {
		return strings.TrimSpace(arg), nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read mission file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(arg))
	if ext != ".yml" && ext != ".yaml" {
		return strings.TrimSpace(string(data)), nil
	}

	var doc struct {
		Mission any `yaml:"mission"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse mission file %s: %v: %w", arg, err, perrors.ErrInvalidInput)
	}
	m, ok := doc.Mission.(string)
	if !ok || strings.TrimSpace(m) == "" {
		return "", fmt.Errorf("mission file %s must contain a non-empty 'mission' field: %w", arg, perrors.ErrInvalidInput)
	}
	return strings.TrimSpace(m), nil
}

func (a *app) runMission(ctx context.Context, arg string, opts runOptions) error {
	mission, err := resolveMission(arg)
	if err != nil {
		return err
	}
	if mission == "" {
		return fmt.Errorf("mission is required: %w", perrors.ErrInvalidInput)
	}

	report := skill.Discover(a.cfg.SkillRoots(opts.skillDirs...))
	printList(a.errOut, "Skill parse/validation errors:", report.Errors)

	index := report.Index()
	if index.Len() == 0 {
		fmt.Fprintln(a.errOut, "No skills found. Add skills under .agents/skills/<name>/SKILL.md or pass --skill-dir.")
		return &exitError{code: 2}
	}

	selector := opts.provider
	if selector == "" {
		selector = a.cfg.Provider
	}
	provider, err := a.providers().New(selector, opts.model)
	if err != nil {
		return err
	}

	layout := rundir.New(a.cfg.RunsDir, rundir.NewID())
	if opts.out != "" {
		layout = rundir.Layout{Root: opts.out}
	}

	fmt.Fprintf(a.out, "Mission: %s\nProvider: %s\nSkills loaded: %d\nRun dir: %s\n\n",
		mission, selector, index.Len(), layout.Root)

	orch := orchestrator.New(index, provider,
		orchestrator.WithProviderTimeout(a.cfg.ProviderTimeout),
		orchestrator.WithLogger(a.logger),
	)
	summary, err := orch.Run(ctx, mission, layout)
	if err != nil {
		if werr := os.WriteFile(layout.Error(), []byte(err.Error()), 0o644); werr != nil && !errors.Is(werr, os.ErrNotExist) {
			a.logger.Warn().Err(werr).Msg("write run error failed")
		}
		return err
	}

	fmt.Fprintf(a.out, "Work orders: %d\nFiles written: %d\n", len(summary.Plan.WorkOrders), len(summary.WrittenFiles))
	for _, f := range summary.WrittenFiles {
		fmt.Fprintf(a.out, "  - %s\n", f)
	}
	printList(a.out, "Warnings:", summary.Warnings)
	fmt.Fprintf(a.out, "Report: %s\n", layout.Report())
	return nil
}

func printList(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, l := range lines {
		fmt.Fprintf(w, "- %s\n", l)
	}
	fmt.Fprintln(w)
}
