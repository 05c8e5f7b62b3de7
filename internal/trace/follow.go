package trace

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often a follower re-reads the log.
const DefaultPollInterval = 600 * time.Millisecond

// FollowOptions tunes Follow.
type FollowOptions struct {
	// Interval between re-reads. Zero means DefaultPollInterval.
	Interval time.Duration
	// StopOnDone ends the follow after a mission.done event is delivered,
	// or right away when one already sits before the starting index.
	StopOnDone bool
	// StopWhen is checked before every read; once it returns true the
	// follower drains what is left in the log and returns.
	StopWhen func() bool
	// OnIdle runs after a read that delivered nothing. An error ends the
	// follow; stream writers use it to notice vanished clients.
	OnIdle func() error
}

// Follow tails the trace at path starting at line index since and calls fn
// for every newly observed event, in order. The reader keeps its own cursor;
// there is no subscription on the writer side. Follow polls on a fixed
// interval and also wakes on filesystem write notifications when available.
//
// Follow returns when ctx is done (with ctx.Err()), when fn returns an error
// (with that error), or when a stop condition in opts is met (with nil).
func Follow(ctx context.Context, path string, since int, opts FollowOptions, fn func(Indexed) error) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if opts.StopOnDone && since > 0 {
		done, err := doneBefore(path, since)
		if err != nil || done {
			return err
		}
	}

	var wake <-chan fsnotify.Event
	var watchErrs <-chan error
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer w.Close()
		if w.Add(filepath.Dir(path)) == nil {
			wake = w.Events
			watchErrs = w.Errors
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cursor := since
	for {
		stop := opts.StopWhen != nil && opts.StopWhen()

		events, next, err := ReadFrom(path, cursor)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := fn(ev); err != nil {
				return err
			}
			if opts.StopOnDone && ev.Event.Type == TypeMissionDone {
				return nil
			}
		}
		cursor = next

		if stop {
			return nil
		}
		if len(events) == 0 && opts.OnIdle != nil {
			if err := opts.OnIdle(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case ev, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
		case _, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			}
		}
	}
}

// doneBefore reports whether a mission.done event sits below line index since.
func doneBefore(path string, since int) (bool, error) {
	events, _, err := ReadFrom(path, 0)
	if err != nil {
		return false, err
	}
	for _, ie := range events {
		if ie.Index >= since {
			break
		}
		if ie.Event.Type == TypeMissionDone {
			return true, nil
		}
	}
	return false, nil
}
