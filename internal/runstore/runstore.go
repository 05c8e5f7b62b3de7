// Package runstore reads run directories back for display. It never writes.
package runstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
	"github.com/p-blackswan/skillforge/internal/plan"
	"github.com/p-blackswan/skillforge/internal/rundir"
	"github.com/p-blackswan/skillforge/internal/trace"
)

// DefaultMaxPreviewBytes caps single-file reads.
const DefaultMaxPreviewBytes int64 = 200_000

// RunInfo is one row of the run history.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Mission   *string   `json:"mission"`
	UpdatedAt time.Time `json:"updated_at"`
	HasPlan   bool      `json:"has_plan"`
	HasTrace  bool      `json:"has_trace"`
	HasError  bool      `json:"has_error"`
}

// Node is an entry in a workspace tree.
type Node struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     *int64 `json:"size,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// File is a previewable workspace file.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Store reads runs under Root.
type Store struct {
	Root            string
	MaxPreviewBytes int64
}

// New returns a store rooted at root.
func New(root string, maxPreview int64) *Store {
	if maxPreview <= 0 {
		maxPreview = DefaultMaxPreviewBytes
	}
	return &Store{Root: root, MaxPreviewBytes: maxPreview}
}

// List returns every run directory, newest id first. A missing root yields
// an empty list.
func (s *Store) List() ([]RunInfo, error) {
	entries, err := os.ReadDir(s.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return []RunInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]RunInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		l := rundir.New(s.Root, e.Name())
		runs = append(runs, RunInfo{
			RunID:     e.Name(),
			Mission:   s.Mission(l),
			UpdatedAt: info.ModTime().UTC(),
			HasPlan:   exists(l.Plan()),
			HasTrace:  exists(l.Trace()),
			HasError:  exists(l.Error()),
		})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID > runs[j].RunID })
	return runs, nil
}

// Resolve maps a run id to its layout.
func (s *Store) Resolve(runID string) (rundir.Layout, error) {
	if !rundir.ValidID(runID) {
		return rundir.Layout{}, fmt.Errorf("run id %q: %w", runID, perrors.ErrInvalidInput)
	}
	l := rundir.New(s.Root, runID)
	st, err := os.Stat(l.Root)
	if err != nil || !st.IsDir() {
		return rundir.Layout{}, fmt.Errorf("run %s: %w", runID, perrors.ErrNotFound)
	}
	return l, nil
}

// Mission returns the mission of a run: the first mission.start event, else
// the Mission: line of the report. nil when neither is present.
func (s *Store) Mission(l rundir.Layout) *string {
	if m, ok := missionFromTrace(l.Trace()); ok {
		return &m
	}
	report, err := s.Report(l)
	if err != nil || report == nil {
		return nil
	}
	for _, line := range strings.Split(*report, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Mission:") {
			m := strings.TrimSpace(strings.TrimPrefix(line, "Mission:"))
			if m == "" {
				return nil
			}
			return &m
		}
	}
	return nil
}

func missionFromTrace(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var ev trace.Event
		if json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		if ev.Type == trace.TypeMissionStart {
			if m, ok := ev.Payload["mission"].(string); ok {
				return m, true
			}
		}
	}
	return "", false
}

// Plan parses plan.json. A missing or unparseable file yields nil.
func (s *Store) Plan(l rundir.Layout) *plan.Plan {
	b, err := os.ReadFile(l.Plan())
	if err != nil {
		return nil
	}
	var p plan.Plan
	if json.Unmarshal(b, &p) != nil {
		return nil
	}
	return &p
}

// Report returns RUN.md, or nil when the run has not reported yet.
func (s *Store) Report(l rundir.Layout) (*string, error) {
	return readOptional(l.Report())
}

// RunError returns RUN_ERROR.txt, or nil.
func (s *Store) RunError(l rundir.Layout) (*string, error) {
	return readOptional(l.Error())
}

// Trace decodes the run's trace, skipping malformed lines.
func (s *Store) Trace(l rundir.Layout) ([]trace.Event, error) {
	events, err := trace.ReadAll(l.Trace())
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []trace.Event{}
	}
	return events, nil
}

// Tree lists the workspace recursively in lexicographic order.
func (s *Store) Tree(l rundir.Layout) ([]Node, error) {
	ws := l.Workspace()
	st, err := os.Stat(ws)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("workspace of %s: %w", l.ID(), perrors.ErrNotFound)
	}
	return buildTree(ws, ws)
}

func buildTree(dir, base string) ([]Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		rel, err := filepath.Rel(base, full)
		if err != nil {
			return nil, err
		}
		n := Node{Name: e.Name(), Path: filepath.ToSlash(rel)}
		if e.IsDir() {
			n.Type = "dir"
			children, err := buildTree(full, base)
			if err != nil {
				return nil, err
			}
			n.Children = children
		} else {
			n.Type = "file"
			info, err := e.Info()
			if err != nil {
				return nil, err
			}
			size := info.Size()
			n.Size = &size
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// ReadFile returns a workspace file for preview. The resolved path, symlinks
// included, must stay inside the workspace.
func (s *Store) ReadFile(l rundir.Layout, rel string) (*File, error) {
	if rel == "" {
		return nil, fmt.Errorf("empty path: %w", perrors.ErrInvalidInput)
	}
	root, err := filepath.EvalSymlinks(l.Workspace())
	if err != nil {
		return nil, fmt.Errorf("workspace of %s: %w", l.ID(), perrors.ErrNotFound)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, target) {
		return nil, fmt.Errorf("path %q: %w", rel, perrors.ErrInvalidInput)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file %q: %w", rel, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", rel, err)
	}
	if !within(root, resolved) {
		return nil, fmt.Errorf("path %q: %w", rel, perrors.ErrInvalidInput)
	}

	st, err := os.Stat(resolved)
	if err != nil || !st.Mode().IsRegular() {
		return nil, fmt.Errorf("file %q: %w", rel, perrors.ErrNotFound)
	}
	if st.Size() > s.MaxPreviewBytes {
		return nil, fmt.Errorf("file %q is %d bytes: %w", rel, st.Size(), perrors.ErrTooLarge)
	}
	b, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", rel, err)
	}
	return &File{Path: rel, Content: strings.ToValidUTF8(string(b), "")}, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func readOptional(path string) (*string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := strings.ToValidUTF8(string(b), "")
	return &s, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
