package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/p-blackswan/skillforge/internal/trace"
)

// StreamConfig tunes the SSE endpoint.
type StreamConfig struct {
	PollInterval time.Duration
	Heartbeat    time.Duration
}

func (s StreamConfig) withDefaults() StreamConfig {
	if s.PollInterval <= 0 {
		s.PollInterval = trace.DefaultPollInterval
	}
	if s.Heartbeat <= 0 {
		s.Heartbeat = 15 * time.Second
	}
	return s
}

// SetStreamConfig overrides stream tuning.
func (h *Handlers) SetStreamConfig(s StreamConfig) {
	h.stream = s.withDefaults()
}

// StreamTrace handles GET /api/runs/:id/stream?since=N. The stream ends
// after mission.done (immediately if it lies before since), once
// RUN_ERROR.txt appears, or when the client goes away.
func (h *Handlers) StreamTrace(c *fiber.Ctx) error {
	l, err := h.runs.Resolve(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	since, err := parseSince(c.Query("since"))
	if err != nil {
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	cfg := h.stream
	logger := h.logger.With().Str("run_id", l.ID()).Str("request_id", requestID(c)).Logger()
	tracePath, errPath := l.Trace(), l.Error()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if _, err := w.WriteString("retry: 1000\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		lastWrite := time.Now()
		err := trace.Follow(context.Background(), tracePath, since, trace.FollowOptions{
			Interval:   cfg.PollInterval,
			StopOnDone: true,
			StopWhen: func() bool {
				_, err := os.Stat(errPath)
				return err == nil
			},
			OnIdle: func() error {
				if time.Since(lastWrite) < cfg.Heartbeat {
					return nil
				}
				lastWrite = time.Now()
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return err
				}
				return w.Flush()
			},
		}, func(ie trace.Indexed) error {
			data, err := json.Marshal(StreamFrame{Index: ie.Index, Event: ie.Event})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ie.Index, data); err != nil {
				return err
			}
			lastWrite = time.Now()
			return w.Flush()
		})
		if err != nil {
			logger.Debug().Err(err).Msg("trace stream closed")
		}
	}))
	return nil
}
