// Package orchestrator drives a mission through planning, per work order
// execution and reporting, recording every step to the run's trace.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
	"github.com/p-blackswan/skillforge/internal/llm"
	"github.com/p-blackswan/skillforge/internal/metrics"
	"github.com/p-blackswan/skillforge/internal/plan"
	"github.com/p-blackswan/skillforge/internal/rundir"
	"github.com/p-blackswan/skillforge/internal/skill"
	"github.com/p-blackswan/skillforge/internal/trace"
)

// Summary is what a completed run hands back to its caller.
type Summary struct {
	RunDir       string
	Workspace    string
	Plan         *plan.Plan
	WrittenFiles []string // absolute, distinct, in first-write order
	Warnings     []string
}

// Orchestrator runs missions against a skill index and a provider. It holds
// no per-run state and may run several missions concurrently.
type Orchestrator struct {
	index    *skill.Index
	provider llm.Provider
	metrics  *metrics.Metrics
	timeout  time.Duration
	logger   zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithProviderTimeout bounds each provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l.With().Str("component", "orchestrator").Logger() }
}

// New creates an orchestrator.
func New(index *skill.Index, provider llm.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		index:    index,
		provider: provider,
		timeout:  llm.DefaultTimeout,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type run struct {
	*Orchestrator
	mission  string
	layout   rundir.Layout
	rec      *trace.Recorder
	sm       machine
	logger   zerolog.Logger
	written  []string
	seen     map[string]struct{}
	warnings []string
}

// Run executes mission into the run directory described by layout. A
// planning failure aborts the run; everything after planning is recorded as
// warnings and the run still completes.
func (o *Orchestrator) Run(ctx context.Context, mission string, layout rundir.Layout) (*Summary, error) {
	started := time.Now()
	o.metrics.RunStarted()

	r := &run{
		Orchestrator: o,
		mission:      mission,
		layout:       layout,
		seen:         make(map[string]struct{}),
		logger:       o.logger.With().Str("run_id", layout.ID()).Logger(),
		sm:           machine{state: StateStarting},
	}
	r.sm.onMove = func(from, to State) {
		r.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("run state")
	}

	summary, err := r.execute(ctx)
	outcome := "completed"
	if err != nil {
		outcome = "failed"
		if r.sm.state == StatePlanFailed {
			outcome = "plan_failed"
		}
		r.logger.Error().Err(err).Str("state", string(r.sm.state)).Msg("run failed")
	} else {
		r.logger.Info().
			Int("files", len(summary.WrittenFiles)).
			Int("warnings", len(summary.Warnings)).
			Dur("elapsed", time.Since(started)).
			Msg("run complete")
	}
	o.metrics.RunFinished(outcome, time.Since(started).Seconds())
	return summary, err
}

func (r *run) execute(ctx context.Context) (*Summary, error) {
	workspace := r.layout.Workspace()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	rec, err := trace.NewRecorder(r.layout.Trace())
	if err != nil {
		return nil, err
	}
	r.rec = rec

	if err := r.rec.Emit(trace.TypeMissionStart, trace.Payload{"mission": r.mission}); err != nil {
		return nil, err
	}

	if err := r.sm.move(StatePlanning); err != nil {
		return nil, err
	}
	p, err := r.plan(ctx)
	if err != nil {
		if moveErr := r.sm.move(StatePlanFailed); moveErr != nil {
			return nil, errors.Join(err, moveErr)
		}
		return nil, err
	}

	if err := r.sm.move(StateExecuting); err != nil {
		return nil, err
	}
	for _, wo := range p.WorkOrders {
		if err := r.workOrder(ctx, wo); err != nil {
			return nil, err
		}
	}

	if err := r.sm.move(StateReporting); err != nil {
		return nil, err
	}
	if err := r.report(p); err != nil {
		return nil, err
	}
	if err := r.sm.move(StateDone); err != nil {
		return nil, err
	}

	return &Summary{
		RunDir:       r.layout.Root,
		Workspace:    workspace,
		Plan:         p,
		WrittenFiles: r.written,
		Warnings:     r.warnings,
	}, nil
}

func (r *run) complete(ctx context.Context, phase string, req llm.Request) (map[string]any, error) {
	req.Timeout = r.timeout
	start := time.Now()
	out, err := r.provider.CompleteStructured(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.ObserveProviderCall(phase, status, time.Since(start).Seconds())
	return out, err
}

func (r *run) plan(ctx context.Context) (*plan.Plan, error) {
	available := r.index.Compact()
	if err := r.rec.Emit(trace.TypePlanRequest, trace.Payload{"availableSkills": len(available)}); err != nil {
		return nil, err
	}

	raw, err := r.complete(ctx, "plan", llm.Request{
		System:      planSystemPrompt,
		User:        planPrompt(r.mission, available),
		SchemaHint:  PlanSchemaHint,
		Temperature: planTemperature,
		MaxTokens:   planMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}
	if err := r.rec.Emit(trace.TypePlanResponse, trace.Payload{"raw": raw}); err != nil {
		return nil, err
	}

	p, err := plan.DecodePlan(raw)
	if err != nil {
		return nil, err
	}
	data, err := MarshalPlan(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	if err := writeFile(r.layout.Plan(), string(data)); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	r.logger.Info().Str("mode", p.Mode).Int("work_orders", len(p.WorkOrders)).Msg("plan ready")
	return p, nil
}

func (r *run) warn(w string) {
	r.warnings = append(r.warnings, w)
}

// workOrder returns an error only for trace I/O failures; everything else
// the work order can hit is a warning.
func (r *run) workOrder(ctx context.Context, wo plan.WorkOrder) error {
	if err := r.rec.Emit(trace.TypeWorkOrderStart, trace.Payload{"id": wo.ID, "skill": wo.Skill, "title": wo.Title}); err != nil {
		return err
	}

	ref, ok := r.index.Get(wo.Skill)
	if !ok {
		w := fmt.Sprintf("WorkOrder %s references missing skill: %s", wo.ID, wo.Skill)
		r.warn(w)
		r.metrics.RecordWorkOrder("skipped")
		return r.rec.Emit(trace.TypeWorkOrderSkip, trace.Payload{"id": wo.ID, "reason": w})
	}

	body, err := r.index.LoadBody(wo.Skill)
	if err != nil {
		return r.execFailed(wo, fmt.Errorf("load skill body: %w", err))
	}

	if err := r.rec.Emit(trace.TypeSkillExecRequest, trace.Payload{"skill": wo.Skill, "workOrder": wo.ID}); err != nil {
		return err
	}
	raw, err := r.complete(ctx, "execute", llm.Request{
		System:      execSystemPrompt,
		User:        execPrompt(r.mission, wo, ref, body),
		SchemaHint:  ExecSchemaHint,
		Temperature: execTemperature,
		MaxTokens:   execMaxTokens,
	})
	if err != nil {
		return r.execFailed(wo, err)
	}
	if err := r.rec.Emit(trace.TypeSkillExecResponse, trace.Payload{"skill": wo.Skill, "raw": raw}); err != nil {
		return err
	}

	result, err := plan.DecodeExecutionResult(raw)
	if err != nil {
		return r.execFailed(wo, err)
	}

	paths := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		dst, rel, err := resolveInWorkspace(r.layout.Workspace(), f.Path)
		if err != nil {
			r.warn(fmt.Sprintf("WorkOrder %s produced unsafe path %q; not written", wo.ID, f.Path))
			continue
		}
		if err := writeFile(dst, f.Content); err != nil {
			r.warn(fmt.Sprintf("WorkOrder %s failed to write %s: %v", wo.ID, rel, err))
			continue
		}
		paths = append(paths, f.Path)
		if _, dup := r.seen[rel]; !dup {
			r.seen[rel] = struct{}{}
			r.written = append(r.written, dst)
			r.metrics.AddFilesWritten(1)
		}
	}
	r.warnings = append(r.warnings, result.Warnings...)
	r.metrics.RecordWorkOrder("done")

	return r.rec.Emit(trace.TypeWorkOrderDone, trace.Payload{
		"id":      wo.ID,
		"skill":   wo.Skill,
		"files":   paths,
		"summary": result.Summary,
	})
}

func (r *run) execFailed(wo plan.WorkOrder, cause error) error {
	r.warn(fmt.Sprintf("Failed to parse execution result for %s: %v", wo.Skill, cause))
	r.metrics.RecordWorkOrder("failed")
	r.logger.Warn().Err(cause).Str("work_order", wo.ID).Str("skill", wo.Skill).Msg("work order failed")
	return r.rec.Emit(trace.TypeSkillExecParseErr, trace.Payload{"skill": wo.Skill, "error": cause.Error()})
}

func (r *run) report(p *plan.Plan) error {
	planJSON, err := MarshalPlan(p)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	rel := make([]string, 0, len(r.written))
	for _, abs := range r.written {
		f, err := filepath.Rel(r.layout.Workspace(), abs)
		if err != nil {
			return err
		}
		rel = append(rel, filepath.ToSlash(f))
	}
	if err := writeFile(r.layout.Report(), renderReport(r.mission, planJSON, rel, r.warnings)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return r.rec.Emit(trace.TypeMissionDone, trace.Payload{
		"filesWritten": len(r.written),
		"warnings":     len(r.warnings),
	})
}

// IsPlanFailure reports whether err ended a run during planning.
func IsPlanFailure(err error) bool {
	return errors.Is(err, perrors.ErrInvalidPlan) || perrors.IsProviderFailure(err)
}
