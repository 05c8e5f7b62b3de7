// Package rundir defines the on-disk layout of a run and allocates run ids.
package rundir

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File and directory names inside a run directory.
const (
	PlanFile      = "plan.json"
	TraceFile     = "trace.jsonl"
	ReportFile    = "RUN.md"
	ErrorFile     = "RUN_ERROR.txt"
	WorkspaceDir  = "workspace"
	idTimeLayout  = "20060102-150405"
	idSuffixChars = 8
)

// Layout resolves the paths of one run directory.
type Layout struct {
	Root string
}

// New returns the layout for runsDir/runID.
func New(runsDir, runID string) Layout {
	return Layout{Root: filepath.Join(runsDir, runID)}
}

func (l Layout) ID() string        { return filepath.Base(l.Root) }
func (l Layout) Plan() string      { return filepath.Join(l.Root, PlanFile) }
func (l Layout) Trace() string     { return filepath.Join(l.Root, TraceFile) }
func (l Layout) Report() string    { return filepath.Join(l.Root, ReportFile) }
func (l Layout) Error() string     { return filepath.Join(l.Root, ErrorFile) }
func (l Layout) Workspace() string { return filepath.Join(l.Root, WorkspaceDir) }

// NewID allocates a run id of the form YYYYMMDD-HHMMSS-<8 hex> (UTC).
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixChars]
	return fmt.Sprintf("%s-%s", t.UTC().Format(idTimeLayout), suffix)
}

// ValidID reports whether id is safe to join under a runs directory.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
