package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

// Recorder appends events to a run's trace file. Each Emit opens the file in
// append mode, writes one line and syncs it before returning, so nothing is
// lost if the process dies mid-run.
type Recorder struct {
	mu   sync.Mutex
	path string
	last time.Time
	now  func() time.Time
}

// NewRecorder creates the parent directory of path and returns a recorder.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	return &Recorder{path: path, now: time.Now}, nil
}

// Path returns the log file path.
func (r *Recorder) Path() string { return r.path }

// Emit appends one event. Timestamps never go backwards within a recorder.
// Types outside the event vocabulary are rejected with ErrInvalidInput.
func (r *Recorder) Emit(eventType string, payload Payload) error {
	if !IsKnownType(eventType) {
		return fmt.Errorf("unknown event type %q: %w", eventType, perrors.ErrInvalidInput)
	}
	if payload == nil {
		payload = Payload{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	if ts.Before(r.last) {
		ts = r.last
	}
	r.last = ts

	line, err := json.Marshal(Event{TS: ts.Format(time.RFC3339Nano), Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append trace: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync trace: %w", err)
	}
	return f.Close()
}
