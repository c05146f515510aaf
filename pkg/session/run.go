package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sagechat/sage/pkg/events"
	"github.com/sagechat/sage/pkg/sse"
)

// ErrStopped is returned by Run when the user cancelled the stream. It is
// an expected termination, not a failure; callers must not surface it as an
// error message.
var ErrStopped = errors.New("session: stopped by user")

// RunOption configures a Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	idleTimeout time.Duration
}

// WithIdleTimeout overrides the stream inactivity window.
func WithIdleTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.idleTimeout = d
	}
}

// Run drives the whole pipeline for one response body: read frames, parse
// events, dispatch into the session, materialize on completion. Frames are
// processed strictly sequentially so events are never reordered.
//
// Run closes body. Cancelling ctx aborts the stream and returns ErrStopped
// after the transcript has been restored to a consistent state.
func (s *Session) Run(ctx context.Context, body io.ReadCloser, opts ...RunOption) error {
	defer body.Close()

	cfg := runConfig{idleTimeout: sse.DefaultIdleTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	reader := sse.NewReader(body, sse.WithIdleTimeout(cfg.idleTimeout))
	defer reader.Close()

	for !s.finished {
		data, err := reader.Next(ctx)
		switch {
		case err == nil:
			// fall through to dispatch
		case errors.Is(err, io.EOF):
			// Stream ended without a done event. Materialize what we have
			// so the transcript is never left half-painted.
			s.Finish()
			return nil
		case errors.Is(err, sse.ErrIdleTimeout):
			s.log.Warn("stream idle timeout reached, forcing termination")
			s.Finish()
			return nil
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			s.abort()
			return ErrStopped
		default:
			s.transcript.RemoveTyping()
			return fmt.Errorf("reading stream: %w", err)
		}

		ev, perr := events.Parse([]byte(data))
		if perr != nil {
			// One malformed frame must not lose the rest of the response.
			s.log.Warn("skipping malformed frame", "error", perr)
			continue
		}
		if ev == nil {
			continue
		}
		s.Handle(ctx, ev)
	}

	return nil
}
