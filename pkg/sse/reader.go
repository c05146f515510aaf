// Package sse reads the chat backend's event stream: newline-delimited
// "data: {json}" frames over a long-lived HTTP response. It parses frames
// only; interpreting the JSON payloads is the events package's job.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long Next waits for a new frame before giving
// up on the stream. Some server code paths stall after partial delivery, so
// the timeout is a safety net rather than the primary termination signal.
const DefaultIdleTimeout = 2 * time.Second

// ErrIdleTimeout is returned by Next when no bytes arrived within the idle
// window. Callers should treat it as forced end-of-stream, not a failure.
var ErrIdleTimeout = errors.New("sse: no data received before idle timeout")

// Reader incrementally splits a response body into the payloads of its
// "data:" frames. A background goroutine owns the byte-level scanning, so a
// slow consumer never blocks on partial reads; Next hands frames out in
// arrival order.
type Reader struct {
	frames chan frame
	quit   chan struct{}
	closed sync.Once
	idle   time.Duration
}

type frame struct {
	data string
	err  error
}

// Option configures a Reader.
type Option func(*Reader)

// WithIdleTimeout overrides the inactivity window applied by Next.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.idle = d
		}
	}
}

// NewReader starts scanning src for SSE frames. The caller keeps ownership
// of src and must close it when done; call Close as well, or the scanning
// goroutine can stay blocked on a frame send for a stream the consumer
// abandoned mid-way.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		frames: make(chan frame, 16),
		quit:   make(chan struct{}),
		idle:   DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.scan(src)
	return r
}

// Next returns the payload of the next "data:" frame. It returns io.EOF
// when the source is exhausted, ErrIdleTimeout when the stream goes quiet,
// and ctx.Err() when the caller cancels.
func (r *Reader) Next(ctx context.Context) (string, error) {
	timer := time.NewTimer(r.idle)
	defer timer.Stop()

	select {
	case f, ok := <-r.frames:
		if !ok {
			return "", io.EOF
		}
		if f.err != nil {
			return "", f.err
		}
		return f.data, nil
	case <-timer.C:
		return "", ErrIdleTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close releases the scanning goroutine. Closing the source alone only
// unblocks its reads; the goroutine may still be parked on a frame send
// with buffered input behind it. Safe to call more than once.
func (r *Reader) Close() {
	r.closed.Do(func() { close(r.quit) })
}

// scan splits src into lines and forwards frame payloads. bufio handles the
// partial-line buffering, so multi-byte UTF-8 sequences straddling chunk
// boundaries are never split: a frame is only emitted once its terminating
// newline has arrived.
func (r *Reader) scan(src io.Reader) {
	defer close(r.frames)

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// Blank lines delimit frames; ":" lines are comments/keep-alives.
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// Other SSE fields (event, id, retry) are not used by this
			// protocol and are ignored.
			continue
		}
		if !r.send(frame{data: strings.TrimPrefix(data, " ")}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		r.send(frame{err: err})
	}
}

// send forwards a frame unless the reader has been closed, so an
// abandoned stream never strands the goroutine on a full channel.
func (r *Reader) send(f frame) bool {
	select {
	case r.frames <- f:
		return true
	case <-r.quit:
		return false
	}
}
