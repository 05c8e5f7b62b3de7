package trace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := NewRecorder(filepath.Join(t.TempDir(), "nested", "trace.jsonl"))
	require.NoError(t, err)
	return rec
}

func TestRecorder_AppendsLines(t *testing.T) {
	rec := newRecorder(t)
	require.NoError(t, rec.Emit(TypeMissionStart, Payload{"mission": "ship it"}))
	require.NoError(t, rec.Emit(TypePlanRequest, Payload{"availableSkills": 3}))
	require.NoError(t, rec.Emit(TypeMissionDone, nil))

	events, err := ReadAll(rec.Path())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, TypeMissionStart, events[0].Type)
	assert.Equal(t, "ship it", events[0].Payload["mission"])
	assert.Equal(t, float64(3), events[1].Payload["availableSkills"])
	assert.NotNil(t, events[2].Payload)

	for _, e := range events {
		ts, err := e.Time()
		require.NoError(t, err)
		assert.Equal(t, time.UTC, ts.Location())
	}
}

func TestRecorder_TimestampsNeverDecrease(t *testing.T) {
	rec := newRecorder(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	i := 0
	rec.now = func() time.Time { ts := clock[i]; i++; return ts }

	for range clock {
		require.NoError(t, rec.Emit(TypeWorkOrderStart, nil))
	}
	events, err := ReadAll(rec.Path())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, events[0].TS, events[1].TS)
	assert.Greater(t, events[2].TS, events[1].TS)
}

func TestRecorder_ConcurrentEmit(t *testing.T) {
	rec := newRecorder(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, rec.Emit(TypeWorkOrderDone, Payload{"n": n}))
		}(i)
	}
	wg.Wait()

	events, err := ReadAll(rec.Path())
	require.NoError(t, err)
	assert.Len(t, events, 20)
}

func TestReadAll_SkipsMalformedAndMissing(t *testing.T) {
	events, err := ReadAll(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, events)

	path := filepath.Join(t.TempDir(), "trace.jsonl")
	content := `{"ts":"2026-01-01T00:00:00Z","type":"mission.start","payload":{"mission":"m"}}
not json
{"ts":"2026-01-01T00:00:01Z","type":"mission.done","payload":{}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	events, err = ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Len(t, Filter(events, TypeMissionDone), 1)
}

func TestReadFrom_IndexesAndPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	content := `{"type":"mission.start","payload":{}}
garbage
{"type":"plan.request","payload":{}}
{"type":"plan.resp`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	events, next, err := ReadFrom(path, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Index)
	assert.Equal(t, 2, events[1].Index)
	assert.Equal(t, 3, next)

	events, next, err = ReadFrom(path, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypePlanRequest, events[0].Event.Type)
	assert.Equal(t, 3, next)

	events, next, err = ReadFrom(path, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 10, next)
}

func TestIsKnownType(t *testing.T) {
	assert.True(t, IsKnownType(TypeSkillExecParseErr))
	assert.False(t, IsKnownType("mission.cancelled"))
}

func TestRecorder_RejectsUnknownType(t *testing.T) {
	rec := newRecorder(t)
	err := rec.Emit("mission.cancelled", nil)
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
	assert.NoFileExists(t, rec.Path())

	require.NoError(t, rec.Emit(TypeMissionStart, nil))
	events, err := ReadAll(rec.Path())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFollow_DeliversLiveEventsAndStopsOnDone(t *testing.T) {
	rec := newRecorder(t)
	require.NoError(t, rec.Emit(TypeMissionStart, Payload{"mission": "m"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []Indexed
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, rec.Path(), 0, FollowOptions{Interval: 10 * time.Millisecond, StopOnDone: true},
			func(ie Indexed) error {
				got = append(got, ie)
				return nil
			})
	}()

	require.NoError(t, rec.Emit(TypePlanRequest, nil))
	require.NoError(t, rec.Emit(TypeMissionDone, Payload{"filesWritten": 0}))
	require.NoError(t, <-done)

	require.Len(t, got, 3)
	for i, ie := range got {
		assert.Equal(t, i, ie.Index)
	}
	assert.Equal(t, TypeMissionDone, got[2].Event.Type)
}

func TestFollow_ResumesFromCursor(t *testing.T) {
	rec := newRecorder(t)
	for _, typ := range []string{TypeMissionStart, TypePlanRequest, TypeMissionDone} {
		require.NoError(t, rec.Emit(typ, nil))
	}

	var got []int
	err := Follow(context.Background(), rec.Path(), 1, FollowOptions{StopOnDone: true}, func(ie Indexed) error {
		got = append(got, ie.Index)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

func TestFollow_SincePastDoneReturnsImmediately(t *testing.T) {
	rec := newRecorder(t)
	for _, typ := range []string{TypeMissionStart, TypePlanRequest, TypeMissionDone} {
		require.NoError(t, rec.Emit(typ, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, since := range []int{3, 7} {
		calls := 0
		err := Follow(ctx, rec.Path(), since, FollowOptions{Interval: 5 * time.Millisecond, StopOnDone: true},
			func(Indexed) error { calls++; return nil })
		require.NoError(t, err)
		assert.Zero(t, calls)
	}
}

func TestFollow_StopsOnCallbackErrorAndContext(t *testing.T) {
	rec := newRecorder(t)
	require.NoError(t, rec.Emit(TypeMissionStart, nil))

	errGone := errors.New("client gone")
	err := Follow(context.Background(), rec.Path(), 0, FollowOptions{}, func(Indexed) error { return errGone })
	assert.ErrorIs(t, err, errGone)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = Follow(ctx, rec.Path(), 1, FollowOptions{Interval: 5 * time.Millisecond}, func(Indexed) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFollow_StopWhenDrainsRemaining(t *testing.T) {
	rec := newRecorder(t)
	require.NoError(t, rec.Emit(TypeMissionStart, nil))
	require.NoError(t, rec.Emit(TypePlanRequest, nil))

	var n int
	err := Follow(context.Background(), rec.Path(), 0, FollowOptions{StopWhen: func() bool { return true }},
		func(Indexed) error { n++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFollow_OnIdleErrorEndsFollow(t *testing.T) {
	rec := newRecorder(t)
	require.NoError(t, rec.Emit(TypeMissionStart, nil))

	errGone := errors.New("write failed")
	idle := 0
	err := Follow(context.Background(), rec.Path(), 0, FollowOptions{
		Interval: 5 * time.Millisecond,
		OnIdle: func() error {
			idle++
			if idle == 2 {
				return errGone
			}
			return nil
		},
	}, func(Indexed) error { return nil })
	assert.ErrorIs(t, err, errGone)
	assert.Equal(t, 2, idle)
}
