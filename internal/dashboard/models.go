package dashboard

import (
	"github.com/p-blackswan/skillforge/internal/plan"
	"github.com/p-blackswan/skillforge/internal/runstore"
	"github.com/p-blackswan/skillforge/internal/trace"
)

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// RunRow is one entry of GET /api/runs.
type RunRow struct {
	runstore.RunInfo
	Status string `json:"status,omitempty"`
}

// RunListResponse is returned by GET /api/runs.
type RunListResponse struct {
	Runs []RunRow `json:"runs"`
}

// RunDetailResponse is returned by GET /api/runs/:id.
type RunDetailResponse struct {
	RunID   string     `json:"run_id"`
	Mission *string    `json:"mission"`
	Plan    *plan.Plan `json:"plan"`
	Report  *string    `json:"report"`
	Error   *string    `json:"error"`
	Status  string     `json:"status,omitempty"`
}

// TraceResponse is returned by GET /api/runs/:id/trace.
type TraceResponse struct {
	Events []trace.Event `json:"events"`
}

// FilesResponse is returned by GET /api/runs/:id/files.
type FilesResponse struct {
	Root string          `json:"root"`
	Tree []runstore.Node `json:"tree"`
}

// ExecuteRequest is the body of POST /api/runs/execute.
type ExecuteRequest struct {
	Mission   string   `json:"mission"`
	Provider  string   `json:"provider"`
	Model     string   `json:"model"`
	SkillDirs []string `json:"skill_dir"`
}

// ExecuteResponse is returned by POST /api/runs/execute.
type ExecuteResponse struct {
	RunID string `json:"run_id"`
}

// SkillInfo describes one discovered skill.
type SkillInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// SkillsResponse is returned by GET /api/skills.
type SkillsResponse struct {
	Skills []SkillInfo `json:"skills"`
	Errors []string    `json:"errors"`
}

// StreamFrame is the data of one SSE message.
type StreamFrame struct {
	Index int         `json:"index"`
	Event trace.Event `json:"event"`
}
