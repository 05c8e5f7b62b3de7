package llm

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	missionLine = regexp.MustCompile(`MISSION:\s*(.+)`)
	skillLine   = regexp.MustCompile(`SKILL:\s*([a-z0-9-]+)`)
	buildWords  = []string{"build", "生成", "项目", "代码", "landing", "api"}
)

// MockProvider is a deterministic, offline provider. It recognises the plan
// and execution schema hints and answers with template output, so the whole
// pipeline runs without credentials.
type MockProvider struct {
	now func() time.Time
}

// NewMockProvider returns a mock provider using the wall clock for the
// "Generated:" stamp in template output.
func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

// CompleteStructured dispatches on the schema hint.
func (m *MockProvider) CompleteStructured(_ context.Context, req Request) (map[string]any, error) {
	switch {
	case strings.Contains(req.SchemaHint, "Plan"):
		return m.plan(req.User), nil
	case strings.Contains(req.SchemaHint, "SkillExecutionResult"):
		return m.execute(req.User), nil
	default:
		return map[string]any{"ok": true, "note": "mock provider fallback", "schema_hint": req.SchemaHint}, nil
	}
}

func extractMission(user string) string {
	if m := missionLine.FindStringSubmatch(user); m != nil {
		return strings.TrimSpace(m[1])
	}
	first := strings.SplitN(strings.TrimSpace(user), "\n", 2)[0]
	if len(first) > 200 {
		first = first[:200]
	}
	return first
}

func stableID(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:6]
}

func output(path, purpose string) map[string]any {
	return map[string]any{"path": path, "purpose": purpose}
}

func workOrder(id, title, skill string, outputs ...map[string]any) map[string]any {
	outs := make([]any, 0, len(outputs))
	for _, o := range outputs {
		outs = append(outs, o)
	}
	return map[string]any{"id": id, "title": title, "skill": skill, "outputs": outs}
}

func (m *MockProvider) plan(user string) map[string]any {
	mission := extractMission(user)
	lower := strings.ToLower(mission)
	mode := "learn"
	for _, w := range buildWords {
		if strings.Contains(lower, w) {
			mode = "build"
			break
		}
	}

	orders := []any{
		workOrder("WO-1", "Write a concise PRD with acceptance criteria", "pm-prd",
			output("docs/PRD.md", "product requirements")),
		workOrder("WO-2", "Turn PRD into a prioritized backlog", "pm-backlog",
			output("docs/BACKLOG.md", "work breakdown")),
		workOrder("WO-3", "Propose architecture and repo structure", "tech-architecture",
			output("docs/ARCHITECTURE.md", "tech design")),
	}
	if mode == "build" {
		orders = append(orders,
			workOrder("WO-4", "Implement a minimal FastAPI app (demo product output)", "eng-fastapi-starter",
				output("app/main.py", "FastAPI app"),
				output("requirements.txt", "runtime deps")),
			workOrder("WO-5", "Add pytest tests and basic quality checks", "qa-pytest",
				output("tests/test_app.py", "smoke test"),
				output("pyproject.toml", "tooling config")),
		)
	}
	orders = append(orders, workOrder("WO-6", "Write a short retrospective and next steps", "coach-retro",
		output("docs/RETRO.md", "learning notes")))

	return map[string]any{
		"mode":        mode,
		"work_orders": orders,
		"assumptions": []any{
			"This is a learning project; mock outputs are deterministic placeholders.",
			"Replace the provider with a real LLM for higher-quality artifacts.",
		},
	}
}

func file(path, content string) map[string]any {
	return map[string]any{"path": path, "content": content}
}

func (m *MockProvider) execute(user string) map[string]any {
	skill := "unknown-skill"
	if s := skillLine.FindStringSubmatch(user); s != nil {
		skill = s[1]
	}
	mission := extractMission(user)
	rid := stableID(skill + "::" + mission)
	now := m.now().UTC().Format("2006-01-02 15:04:05 UTC")

	var files []any
	switch skill {
	case "pm-prd":
		files = append(files, file("docs/PRD.md", fmt.Sprintf(prdTemplate, now, mission)))
	case "pm-backlog":
		files = append(files, file("docs/BACKLOG.md", fmt.Sprintf(backlogTemplate, rid)))
	case "tech-architecture":
		files = append(files, file("docs/ARCHITECTURE.md", architectureTemplate))
	case "eng-fastapi-starter":
		files = append(files,
			file("requirements.txt", "fastapi>=0.110\nuvicorn>=0.29\n"),
			file("app/main.py", fmt.Sprintf(fastapiTemplate, pyRepr(mission))),
			file("README.md", readmeTemplate),
		)
	case "qa-pytest":
		files = append(files,
			file("pyproject.toml", "[tool.pytest.ini_options]\naddopts = '-q'\n"),
			file("tests/test_app.py", pytestTemplate),
		)
	case "coach-retro":
		files = append(files, file("docs/RETRO.md", retroTemplate))
	default:
		files = append(files, file("docs/"+skill+".md",
			fmt.Sprintf("# %s (Mock)\n\nMission: %s\n\nThis is a placeholder output from MockProvider.\n", skill, mission)))
	}

	return map[string]any{
		"files":   files,
		"summary": fmt.Sprintf("Mock execution complete for %s. Wrote %d file(s).", skill, len(files)),
		"warnings": []any{
			"MockProvider output is template-based. Use a real LLM provider for meaningful content.",
		},
	}
}

// pyRepr renders s as a Python string literal.
func pyRepr(s string) string {
	quote := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		quote = `"`
	}
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\t", `\t`, quote, `\`+quote)
	return quote + r.Replace(s) + quote
}

const prdTemplate = `# PRD (Mock)

Generated: %s

## Overview
Mission: %s

## Goals
- Deliver a runnable demo that teaches agent/skills basics

## Non-goals
- Real-world legal incorporation

## Target users & primary use cases
- Learners who want to understand agent orchestration
- Developers who want a reference repo structure

## User stories
- As a user, I can run a mission and get artifacts generated into a workspace.
- As a user, I can list and inspect skills discovered from disk.

## Acceptance criteria
- ` + "`skillforge run`" + ` produces a ` + "`runs/<id>/workspace`" + ` folder with docs and (optionally) code.

## Milestones
- v0.1: CLI + skill discovery + mock provider

## Risks & open questions
- How to sandbox script execution safely?
`

const backlogTemplate = `# Backlog (Mock)

Run: %s

| Priority | Item | Done |
|---|---|---|
| P0 | Skill discovery & validation | ☐ |
| P0 | Orchestrator run pipeline | ☐ |
| P1 | Scenario eval harness | ☐ |
| P2 | Web dashboard | ☐ |
`

const architectureTemplate = `# Architecture (Mock)

## Components
- CLI
- Skill index (discovers SKILL.md)
- Orchestrator (plan -> execute -> write artifacts)
- Provider (mock or OpenAI-compatible)
- Trace (JSONL events)

## Data flow
Mission -> Plan -> WorkOrders -> Skill Execution -> Files -> Run Report

## Notes
This file is generated by the mock provider. Replace with real LLM output for richer content.
`

const fastapiTemplate = `from fastapi import FastAPI

app = FastAPI(title='Demo Landing (Mock)')

@app.get('/')
def home():
    return {"ok": True, "mission": %s}

@app.get('/healthz')
def healthz():
    return {"status": 'ok'}
`

const readmeTemplate = "# Generated Demo App (Mock)\n\nRun:\n\n```bash\npip install -r requirements.txt\nuvicorn app.main:app --reload\n```\n\nOpen: http://127.0.0.1:8000\n"

const pytestTemplate = `from fastapi.testclient import TestClient

from app.main import app

client = TestClient(app)

def test_healthz():
    r = client.get('/healthz')
    assert r.status_code == 200
    assert r.json()['status'] == 'ok'
`

const retroTemplate = `# Retro (Mock)

## What you practiced
- Skill discovery (SKILL.md parsing)
- Simple orchestration pipeline
- Trace logging

## What to improve
- Add a real LLM provider
- Add eval scenarios & CI
- Add a web dashboard for trace + artifacts
`
