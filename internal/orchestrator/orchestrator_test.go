package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
	"github.com/p-blackswan/skillforge/internal/llm"
	"github.com/p-blackswan/skillforge/internal/metrics"
	"github.com/p-blackswan/skillforge/internal/rundir"
	"github.com/p-blackswan/skillforge/internal/skill"
	"github.com/p-blackswan/skillforge/internal/trace"
)

var mockSkills = []string{"pm-prd", "pm-backlog", "tech-architecture", "eng-fastapi-starter", "qa-pytest", "coach-retro"}

func skillIndex(t *testing.T, names ...string) *skill.Index {
	t.Helper()
	root := t.TempDir()
	for _, n := range names {
		dir := filepath.Join(root, n)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		md := "---\nname: " + n + "\ndescription: Skill " + n + "\n---\n\n# " + n + "\n\nInstructions for " + n + ".\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, skill.FileName), []byte(md), 0o644))
	}
	rep := skill.Discover([]string{root})
	require.Empty(t, rep.Errors)
	return rep.Index()
}

// stubProvider answers plan and exec requests from functions.
type stubProvider struct {
	mu    sync.Mutex
	plan  func() (map[string]any, error)
	exec  func(req llm.Request) (map[string]any, error)
	calls []llm.Request
}

func (s *stubProvider) CompleteStructured(_ context.Context, req llm.Request) (map[string]any, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if req.SchemaHint == PlanSchemaHint {
		return s.plan()
	}
	return s.exec(req)
}

func staticPlan(orders ...map[string]any) func() (map[string]any, error) {
	list := make([]any, 0, len(orders))
	for _, o := range orders {
		list = append(list, o)
	}
	return func() (map[string]any, error) {
		return map[string]any{"mode": "build", "work_orders": list}, nil
	}
}

func wo(id, skillName string) map[string]any {
	return map[string]any{"id": id, "title": "do " + skillName, "skill": skillName}
}

func readTrace(t *testing.T, l rundir.Layout) []trace.Event {
	t.Helper()
	events, err := trace.ReadAll(l.Trace())
	require.NoError(t, err)
	return events
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	}))
	return n
}

func types(events []trace.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func TestRun_MockFastAPIEndToEnd(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-1")
	o := New(skillIndex(t, mockSkills...), llm.NewMockProvider(), WithMetrics(metrics.New()))

	mission := "Build a FastAPI landing page API"
	sum, err := o.Run(context.Background(), mission, layout)
	require.NoError(t, err)

	assert.Equal(t, "build", sum.Plan.Mode)
	assert.Len(t, sum.Plan.WorkOrders, 6)
	for _, rel := range []string{"app/main.py", "requirements.txt", "README.md", "tests/test_app.py", "pyproject.toml", "docs/PRD.md", "docs/RETRO.md"} {
		assert.FileExists(t, filepath.Join(layout.Workspace(), filepath.FromSlash(rel)))
	}
	main, err := os.ReadFile(filepath.Join(layout.Workspace(), "app", "main.py"))
	require.NoError(t, err)
	assert.Contains(t, string(main), "from fastapi import FastAPI")
	assert.Contains(t, string(main), "@app.get('/healthz')")

	report, err := os.ReadFile(layout.Report())
	require.NoError(t, err)
	assert.Contains(t, string(report), "# Run Report")
	assert.Contains(t, string(report), "Mission: "+mission)
	assert.Contains(t, string(report), "- app/main.py")
	assert.Contains(t, string(report), "## Warnings")

	var persisted map[string]any
	raw, err := os.ReadFile(layout.Plan())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.NotEmpty(t, persisted["work_orders"])

	events := readTrace(t, layout)
	assert.Equal(t, trace.TypeMissionStart, events[0].Type)
	assert.Equal(t, mission, events[0].Payload["mission"])
	done := trace.Filter(events, trace.TypeMissionDone)
	require.Len(t, done, 1)
	assert.Equal(t, float64(countFiles(t, layout.Workspace())), done[0].Payload["filesWritten"])
	assert.Equal(t, float64(len(sum.WrittenFiles)), done[0].Payload["filesWritten"])
	assert.Empty(t, trace.Filter(events, trace.TypeWorkOrderSkip))
	assert.Len(t, trace.Filter(events, trace.TypeWorkOrderDone), 6)
}

func TestRun_BundledSkillsDemoMission(t *testing.T) {
	rep := skill.Discover([]string{filepath.Join("..", "..", ".agents", "skills")})
	require.Empty(t, rep.Errors)
	index := rep.Index()
	for _, n := range mockSkills {
		_, ok := index.Get(n)
		assert.True(t, ok, "bundled skill %s", n)
	}

	layout := rundir.New(t.TempDir(), "run-demo")
	sum, err := New(index, llm.NewMockProvider()).Run(context.Background(), "Build a runnable demo landing page with FastAPI", layout)
	require.NoError(t, err)

	assert.Equal(t, "build", sum.Plan.Mode)
	var skills []string
	for _, w := range sum.Plan.WorkOrders {
		skills = append(skills, w.Skill)
	}
	assert.Contains(t, skills, "eng-fastapi-starter")
	for _, rel := range []string{"app/main.py", "docs/PRD.md", "docs/ARCHITECTURE.md", "docs/RETRO.md"} {
		assert.FileExists(t, filepath.Join(layout.Workspace(), filepath.FromSlash(rel)))
	}
	for _, w := range sum.Warnings {
		assert.NotContains(t, w, "missing skill")
	}
	assert.Empty(t, trace.Filter(readTrace(t, layout), trace.TypeWorkOrderSkip))
}

func TestRun_LearnModeWritesDocsOnly(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-learn")
	o := New(skillIndex(t, mockSkills...), llm.NewMockProvider())

	sum, err := o.Run(context.Background(), "understand agent orchestration", layout)
	require.NoError(t, err)
	assert.Equal(t, "learn", sum.Plan.Mode)
	assert.NoFileExists(t, filepath.Join(layout.Workspace(), "app", "main.py"))
	assert.FileExists(t, filepath.Join(layout.Workspace(), "docs", "ARCHITECTURE.md"))
}

func TestRun_MissingSkillSkipped(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-2")
	o := New(skillIndex(t, "pm-prd", "pm-backlog", "tech-architecture", "eng-fastapi-starter", "coach-retro"), llm.NewMockProvider())

	sum, err := o.Run(context.Background(), "build an api", layout)
	require.NoError(t, err)

	events := readTrace(t, layout)
	skips := trace.Filter(events, trace.TypeWorkOrderSkip)
	require.Len(t, skips, 1)
	assert.Equal(t, "WO-5", skips[0].Payload["id"])
	assert.Equal(t, "WorkOrder WO-5 references missing skill: qa-pytest", skips[0].Payload["reason"])

	missing := 0
	for _, w := range sum.Warnings {
		if strings.Contains(w, "references missing skill") {
			missing++
		}
	}
	assert.Equal(t, 1, missing)
	assert.NoFileExists(t, filepath.Join(layout.Workspace(), "tests", "test_app.py"))

	report, err := os.ReadFile(layout.Report())
	require.NoError(t, err)
	assert.Contains(t, string(report), "WorkOrder WO-5 references missing skill: qa-pytest")
}

func TestRun_ExecutionDecodeFailureIsRecoverable(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-3")
	sp := &stubProvider{
		plan: staticPlan(wo("A", "pm-prd"), wo("B", "pm-backlog")),
		exec: func(req llm.Request) (map[string]any, error) {
			if strings.Contains(req.User, "SKILL: pm-prd") {
				return map[string]any{"files": "not a list"}, nil
			}
			return map[string]any{"files": []any{map[string]any{"path": "b.md", "content": "b"}}, "summary": "ok"}, nil
		},
	}
	sum, err := New(skillIndex(t, "pm-prd", "pm-backlog"), sp).Run(context.Background(), "m", layout)
	require.NoError(t, err)

	events := readTrace(t, layout)
	pe := trace.Filter(events, trace.TypeSkillExecParseErr)
	require.Len(t, pe, 1)
	assert.Equal(t, "pm-prd", pe[0].Payload["skill"])
	require.NotEmpty(t, sum.Warnings)
	assert.True(t, strings.HasPrefix(sum.Warnings[0], "Failed to parse execution result for pm-prd: "))
	assert.Len(t, trace.Filter(events, trace.TypeWorkOrderDone), 1)
	assert.FileExists(t, filepath.Join(layout.Workspace(), "b.md"))
}

func TestRun_ExecutionProviderFailureIsRecoverable(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-4")
	sp := &stubProvider{
		plan: staticPlan(wo("A", "pm-prd")),
		exec: func(llm.Request) (map[string]any, error) {
			return nil, perrors.NewProviderError("openai", 500, "boom")
		},
	}
	sum, err := New(skillIndex(t, "pm-prd"), sp).Run(context.Background(), "m", layout)
	require.NoError(t, err)

	events := readTrace(t, layout)
	assert.Equal(t, []string{
		trace.TypeMissionStart, trace.TypePlanRequest, trace.TypePlanResponse,
		trace.TypeWorkOrderStart, trace.TypeSkillExecRequest, trace.TypeSkillExecParseErr,
		trace.TypeMissionDone,
	}, types(events))
	assert.Len(t, sum.Warnings, 1)
	assert.Contains(t, sum.Warnings[0], "boom")
}

func TestRun_PlanDecodeFailureAborts(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-5")
	sp := &stubProvider{plan: func() (map[string]any, error) {
		return map[string]any{"mode": "build"}, nil
	}}
	_, err := New(skillIndex(t, "pm-prd"), sp).Run(context.Background(), "m", layout)
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrInvalidPlan)
	assert.True(t, IsPlanFailure(err))
	assert.NoFileExists(t, layout.Plan())
	assert.NoFileExists(t, layout.Report())

	events := readTrace(t, layout)
	assert.Equal(t, []string{trace.TypeMissionStart, trace.TypePlanRequest, trace.TypePlanResponse}, types(events))
}

func TestRun_PlanProviderFailureAborts(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-6")
	sp := &stubProvider{plan: func() (map[string]any, error) {
		return nil, &perrors.ProviderError{Provider: "openai", Message: "http", Err: errors.New("dial tcp: refused")}
	}}
	_, err := New(skillIndex(t, "pm-prd"), sp).Run(context.Background(), "m", layout)
	require.Error(t, err)
	assert.True(t, IsPlanFailure(err))
	assert.Equal(t, []string{trace.TypeMissionStart, trace.TypePlanRequest}, types(readTrace(t, layout)))
}

func TestRun_UnsafePathsAndDuplicates(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-7")
	sp := &stubProvider{
		plan: staticPlan(wo("A", "pm-prd"), wo("B", "pm-prd")),
		exec: func(llm.Request) (map[string]any, error) {
			return map[string]any{"files": []any{
				map[string]any{"path": "docs/same.md", "content": "x"},
				map[string]any{"path": "../escape.txt", "content": "x"},
				map[string]any{"path": "/etc/abs.txt", "content": "x"},
			}}, nil
		},
	}
	sum, err := New(skillIndex(t, "pm-prd"), sp).Run(context.Background(), "m", layout)
	require.NoError(t, err)

	assert.Len(t, sum.WrittenFiles, 1)
	assert.NoFileExists(t, filepath.Join(layout.Root, "escape.txt"))
	assert.Equal(t, 1, countFiles(t, layout.Workspace()))

	unsafe := 0
	for _, w := range sum.Warnings {
		if strings.Contains(w, "unsafe path") {
			unsafe++
		}
	}
	assert.Equal(t, 4, unsafe)

	done := trace.Filter(readTrace(t, layout), trace.TypeMissionDone)
	require.Len(t, done, 1)
	assert.Equal(t, float64(1), done[0].Payload["filesWritten"])
}

func TestRun_PromptsCarrySkillContext(t *testing.T) {
	layout := rundir.New(t.TempDir(), "run-8")
	sp := &stubProvider{
		plan: staticPlan(map[string]any{
			"id": "A", "title": "Write PRD", "skill": "pm-prd",
			"outputs": []any{map[string]any{"path": "docs/PRD.md", "purpose": "reqs"}},
		}),
		exec: func(llm.Request) (map[string]any, error) { return map[string]any{}, nil },
	}
	_, err := New(skillIndex(t, "pm-prd", "coach-retro"), sp).Run(context.Background(), "ship it", layout)
	require.NoError(t, err)

	require.Len(t, sp.calls, 2)
	planReq := sp.calls[0]
	assert.Equal(t, planSystemPrompt, planReq.System)
	assert.Equal(t, 1800, planReq.MaxTokens)
	assert.Contains(t, planReq.User, "MISSION: ship it")
	assert.Contains(t, planReq.User, "- coach-retro: Skill coach-retro\n- pm-prd: Skill pm-prd")

	execReq := sp.calls[1]
	assert.Equal(t, ExecSchemaHint, execReq.SchemaHint)
	assert.Equal(t, 2500, execReq.MaxTokens)
	assert.Equal(t, 0.2, execReq.Temperature)
	assert.Contains(t, execReq.User, "WORK_ORDER: A - Write PRD")
	assert.Contains(t, execReq.User, "SKILL_DESCRIPTION: Skill pm-prd")
	assert.Contains(t, execReq.User, "- docs/PRD.md: reqs")
	assert.Contains(t, execReq.User, "Instructions for pm-prd.")
}

func TestResolveInWorkspace(t *testing.T) {
	ws := filepath.FromSlash("/tmp/ws")
	abs, rel, err := resolveInWorkspace(ws, "a/./b/../c.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "a", "c.txt"), abs)
	assert.Equal(t, "a/c.txt", rel)

	for _, bad := range []string{"", ".", "..", "../x", "a/../../x", "/abs"} {
		_, _, err := resolveInWorkspace(ws, bad)
		assert.ErrorIs(t, err, perrors.ErrInvalidInput, bad)
	}
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, CanTransition(StateStarting, StatePlanning))
	assert.True(t, CanTransition(StatePlanning, StatePlanFailed))
	assert.True(t, CanTransition(StatePlanning, StateExecuting))
	assert.True(t, CanTransition(StateExecuting, StateReporting))
	assert.True(t, CanTransition(StateReporting, StateDone))
	assert.False(t, CanTransition(StateStarting, StateExecuting))
	assert.False(t, CanTransition(StateDone, StateStarting))
	assert.False(t, CanTransition(StatePlanFailed, StateExecuting))
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StatePlanFailed.IsTerminal())
	assert.False(t, StatePlanning.IsTerminal())

	m := machine{state: StateStarting}
	assert.Error(t, m.move(StateDone))
	assert.Equal(t, StateStarting, m.state)
}
