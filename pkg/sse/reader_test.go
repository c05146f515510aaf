package sse_test

import (
	"context"
	"io"
	"runtime"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sagechat/sage/pkg/sse"
)

// chunkedReader returns its input in fixed-size slices, forcing frames and
// runes to straddle read boundaries.
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	end := c.pos + c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.pos:end])
	c.pos += n
	return n, nil
}

var _ = Describe("Reader", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Next", func() {
		It("parses a single frame", func() {
			r := sse.NewReader(strings.NewReader("data: {\"type\":\"done\"}\n\n"))

			data, err := r.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("{\"type\":\"done\"}"))

			_, err = r.Next(ctx)
			Expect(err).To(MatchError(io.EOF))
		})

		It("parses frames in arrival order", func() {
			input := "data: first\n\ndata: second\n\ndata: third\n\n"
			r := sse.NewReader(strings.NewReader(input))

			for _, want := range []string{"first", "second", "third"} {
				data, err := r.Next(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal(want))
			}
		})

		It("skips blank lines and keep-alive comments", func() {
			input := "\n: keep-alive\n\ndata: payload\n\n: ping\n"
			r := sse.NewReader(strings.NewReader(input))

			data, err := r.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("payload"))

			_, err = r.Next(ctx)
			Expect(err).To(MatchError(io.EOF))
		})

		It("ignores non-data fields", func() {
			input := "event: message\nid: 3\nretry: 100\ndata: kept\n\n"
			r := sse.NewReader(strings.NewReader(input))

			data, err := r.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("kept"))
		})

		It("tolerates a missing space after the colon", func() {
			r := sse.NewReader(strings.NewReader("data:tight\n\n"))

			data, err := r.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("tight"))
		})

		It("reassembles frames split across reads, including multi-byte runes", func() {
			payload := "data: {\"content\":\"日本語テキスト 🚀\"}\n\ndata: tail\n\n"
			r := sse.NewReader(&chunkedReader{data: []byte(payload), size: 3})

			data, err := r.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("{\"content\":\"日本語テキスト 🚀\"}"))

			data, err = r.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("tail"))
		})

		It("returns ErrIdleTimeout when the stream stalls", func() {
			pr, pw := io.Pipe()
			defer pw.Close()
			r := sse.NewReader(pr, sse.WithIdleTimeout(20*time.Millisecond))

			_, err := r.Next(ctx)
			Expect(err).To(MatchError(sse.ErrIdleTimeout))
		})

		It("returns the context error on cancellation", func() {
			pr, pw := io.Pipe()
			defer pw.Close()
			r := sse.NewReader(pr, sse.WithIdleTimeout(time.Second))

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := r.Next(cancelled)
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("Close", func() {
		It("releases the scan goroutine of an abandoned stream", func() {
			// More buffered frames than the channel holds, so the scan
			// goroutine is parked on a send when the consumer walks away.
			var input strings.Builder
			for i := 0; i < 100; i++ {
				input.WriteString("data: frame\n\n")
			}

			before := runtime.NumGoroutine()
			for i := 0; i < 10; i++ {
				r := sse.NewReader(strings.NewReader(input.String()))
				_, err := r.Next(ctx)
				Expect(err).NotTo(HaveOccurred())
				r.Close()
			}

			Eventually(func() int {
				runtime.GC()
				return runtime.NumGoroutine()
			}, time.Second, 10*time.Millisecond).Should(BeNumerically("<=", before+1))
		})

		It("is safe to call twice", func() {
			r := sse.NewReader(strings.NewReader("data: one\n\n"))
			r.Close()
			r.Close()
		})
	})
})
