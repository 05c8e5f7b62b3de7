// Command skillforge runs missions against a library of Agent Skills and
// serves the run history dashboard.
//
// Usage:
//
//	skillforge run "Build a landing page API" -p mock
//	skillforge skills list
//	skillforge serve --addr :8000
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/skillforge/internal/config"
	"github.com/p-blackswan/skillforge/internal/llm"
)

// exitError carries a process exit code. A nil err means the message was
// already printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// app is the state shared by all subcommands.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
	errOut io.Writer
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "skillforge",
		Short:         "Run missions with Agent Skills (SKILL.md) and browse their runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.AddCommand(newRunCmd(a), newSkillsCmd(a), newServeCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.logger = newLogger(cfg, cmd.Name() != "serve")
	return nil
}

// newLogger writes JSON to stdout for the server and a console format to
// stderr for interactive commands or in development.
func newLogger(cfg *config.Config, interactive bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if interactive || cfg.IsDevelopment() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Logger = logger
	return logger
}

func (a *app) providers() *llm.Factory {
	return llm.NewFactory(llm.FactoryConfig{
		APIKey:       a.cfg.APIKey(),
		BaseURL:      a.cfg.OpenAIBaseURL,
		DefaultModel: a.cfg.Model(""),
	}, a.logger)
}
