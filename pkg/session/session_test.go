package session_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagechat/sage/pkg/events"
	"github.com/sagechat/sage/pkg/session"
)

type notice struct {
	level session.NoticeLevel
	text  string
}

// fakeTranscript records every paint operation so tests can assert on the
// final transcript state.
type fakeTranscript struct {
	mu            sync.Mutex
	typingVisible bool
	began         int
	deltas        []string
	finalized     []string
	discarded     int
	appended      []session.Message
	notices       []notice
}

func (f *fakeTranscript) ShowTyping() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingVisible = true
}

func (f *fakeTranscript) RemoveTyping() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingVisible = false
}

func (f *fakeTranscript) BeginAssistantText(streamID, seed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.began++
	f.deltas = append(f.deltas, seed)
}

func (f *fakeTranscript) AppendAssistantText(streamID, delta string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, delta)
}

func (f *fakeTranscript) FinalizeAssistantText(streamID, full string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, full)
}

func (f *fakeTranscript) DiscardAssistantText(streamID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded++
}

func (f *fakeTranscript) Append(msg session.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, msg)
}

func (f *fakeTranscript) Notify(level session.NoticeLevel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{level: level, text: text})
}

func (f *fakeTranscript) messages() []session.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Message(nil), f.appended...)
}

type fakeQuizFetcher struct {
	html string
	err  error
}

func (f *fakeQuizFetcher) QuizHTML(ctx context.Context, messageID int64) (string, error) {
	return f.html, f.err
}

func sseBody(frames ...string) io.ReadCloser {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("data: " + f + "\n\n")
	}
	return io.NopCloser(strings.NewReader(b.String()))
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("buffers text deltas and finalizes once at done", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.Content{Text: "Hello "})
		s.Handle(ctx, events.Content{Text: "world"})
		s.Handle(ctx, events.Done{})

		assert.Equal(t, 1, ft.began)
		require.Len(t, ft.finalized, 1)
		assert.Equal(t, "Hello world", ft.finalized[0])
		assert.Empty(t, ft.messages())
	})

	t.Run("combines text with a trailing diagram", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.Content{Text: "Here is a "})
		s.Handle(ctx, events.Content{Text: "diagram:"})
		s.Handle(ctx, events.DiagramImage{ImageID: "7", Order: 1})
		s.Handle(ctx, events.Done{})

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].Parts, 2)
		text, ok := msgs[0].Parts[0].(session.TextPart)
		require.True(t, ok)
		assert.Equal(t, "Here is a diagram:", text.Markdown)
		diagram, ok := msgs[0].Parts[1].(session.DiagramPart)
		require.True(t, ok)
		assert.Equal(t, "7", diagram.ImageID)

		// The in-progress text shell was superseded, not finalized.
		assert.Equal(t, 1, ft.discarded)
		assert.Empty(t, ft.finalized)
	})

	t.Run("renders a lone diagram standalone", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.DiagramImage{ImageID: "9", Caption: "Flow chart"})
		s.Handle(ctx, events.Done{})

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].Parts, 1)
		assert.Equal(t, "Flow chart", msgs[0].Parts[0].(session.DiagramPart).Caption)
	})

	t.Run("sorts side elements by order key with stable ties", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.MixedContentStart{})
		s.Handle(ctx, events.DiagramImage{ImageID: "late", Order: 5})
		s.Handle(ctx, events.DiagramImage{ImageID: "early", Order: 1})
		s.Handle(ctx, events.DiagramImage{ImageID: "tie-a", Order: 3})
		s.Handle(ctx, events.DiagramImage{ImageID: "tie-b", Order: 3})
		s.Handle(ctx, events.Done{})

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		var ids []string
		for _, p := range msgs[0].Parts {
			ids = append(ids, p.(session.DiagramPart).ImageID)
		}
		assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, ids)
	})

	t.Run("falls back to arrival counter when order is absent", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.MixedContentStart{})
		s.Handle(ctx, events.DiagramImage{ImageID: "first"})
		s.Handle(ctx, events.DiagramImage{ImageID: "second"})
		s.Handle(ctx, events.Done{})

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].Parts, 2)
		assert.Equal(t, "first", msgs[0].Parts[0].(session.DiagramPart).ImageID)
		assert.Equal(t, "second", msgs[0].Parts[1].(session.DiagramPart).ImageID)
	})

	t.Run("auto-upgrades to mixed when a second renderable unit appears", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.DiagramImage{ImageID: "one"})
		// First diagram rendered standalone immediately.
		require.Len(t, ft.messages(), 1)

		s.Handle(ctx, events.Content{Text: "and some text"})
		s.Handle(ctx, events.YoutubeRecommendations{Videos: []events.Video{{Title: "clip"}}})
		s.Handle(ctx, events.Done{})

		// Text + youtube combined into one more message.
		msgs := ft.messages()
		require.Len(t, msgs, 2)
		require.Len(t, msgs[1].Parts, 2)
		assert.IsType(t, session.TextPart{}, msgs[1].Parts[0])
		assert.IsType(t, session.YoutubePart{}, msgs[1].Parts[1])
	})

	t.Run("mixed content start clears previously buffered elements", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.Content{Text: "intro"})
		s.Handle(ctx, events.DiagramImage{ImageID: "stale", Order: 1})
		s.Handle(ctx, events.MixedContentStart{})
		s.Handle(ctx, events.DiagramImage{ImageID: "fresh", Order: 1})
		s.Handle(ctx, events.Done{})

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		var ids []string
		for _, p := range msgs[0].Parts {
			if d, ok := p.(session.DiagramPart); ok {
				ids = append(ids, d.ImageID)
			}
		}
		assert.Equal(t, []string{"fresh"}, ids)
	})

	t.Run("renders inline quizzes standalone immediately", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.Quiz{Content: "Try this quiz", QuizHTML: "<div class=\"quiz-question\"></div>", MessageID: 3})

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].Parts, 2)
		assert.Equal(t, "Try this quiz", msgs[0].Parts[0].(session.TextPart).Markdown)
		assert.IsType(t, session.QuizPart{}, msgs[0].Parts[1])
		assert.Equal(t, int64(3), msgs[0].MessageID)
	})

	t.Run("uses the default lead when a quiz arrives without content", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.Quiz{QuizHTML: "<form></form>"})

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, session.DefaultQuizLead, msgs[0].Parts[0].(session.TextPart).Markdown)
	})

	t.Run("fetches triggered quiz renders out of band", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft, session.WithQuizFetcher(&fakeQuizFetcher{html: "<form data-correct=\"b\"></form>"}))

		s.Handle(ctx, events.TriggerQuizRender{MessageID: 21})
		s.Wait()

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, int64(21), msgs[0].MessageID)
		assert.Contains(t, msgs[0].Parts[0].(session.QuizPart).HTML, "data-correct")
	})

	t.Run("surfaces quiz fetch failures as notices without crashing", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft, session.WithQuizFetcher(&fakeQuizFetcher{err: errors.New("boom")}))

		s.Handle(ctx, events.TriggerQuizRender{MessageID: 8})
		s.Wait()

		require.Len(t, ft.notices, 1)
		assert.Equal(t, session.NoticeError, ft.notices[0].level)
		assert.Empty(t, ft.messages())
	})

	t.Run("reports server errors without ending the stream", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.StreamError{Message: "model unavailable"})
		s.Handle(ctx, events.Content{Text: "still here"})
		s.Handle(ctx, events.Done{})

		require.Len(t, ft.notices, 1)
		assert.Equal(t, session.NoticeError, ft.notices[0].level)
		require.Len(t, ft.finalized, 1)
		assert.Equal(t, "still here", ft.finalized[0])
	})

	t.Run("warns about truncated file uploads", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.FileInfo{Status: events.StatusTruncated, Message: "File was shortened"})

		require.Len(t, ft.notices, 1)
		assert.Equal(t, session.NoticeWarning, ft.notices[0].level)
	})

	t.Run("rejects diagrams without an image id", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.DiagramImage{Caption: "ghost"})
		s.Handle(ctx, events.Done{})

		assert.Empty(t, ft.messages())
		require.Len(t, ft.notices, 1)
		assert.Equal(t, session.NoticeError, ft.notices[0].level)
	})
}

func TestMaterializer(t *testing.T) {
	ctx := context.Background()

	t.Run("is idempotent for a finished session", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.Content{Text: "text"})
		s.Handle(ctx, events.DiagramImage{ImageID: "1", Order: 1})
		s.Finish()
		s.Finish()

		assert.Len(t, ft.messages(), 1)
		assert.True(t, s.Finished())
	})

	t.Run("drops events arriving after done", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		s.Handle(ctx, events.Content{Text: "done deal"})
		s.Handle(ctx, events.Done{})
		s.Handle(ctx, events.Content{Text: "late"})

		require.Len(t, ft.finalized, 1)
		assert.Equal(t, "done deal", ft.finalized[0])
	})

	t.Run("always removes the typing indicator", func(t *testing.T) {
		ft := &fakeTranscript{}
		ft.ShowTyping()
		s := session.New(ft)

		s.Handle(ctx, events.Done{})

		assert.False(t, ft.typingVisible)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("drives a full stream end to end", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		body := sseBody(
			`{"type": "content", "content": "Here is a "}`,
			`{"type": "content", "content": "diagram:"}`,
			`{"type": "diagram_image", "diagram_image_id": 7, "order": 1}`,
			`{"type": "done"}`,
		)
		require.NoError(t, s.Run(ctx, body))

		msgs := ft.messages()
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].Parts, 2)
		assert.Equal(t, "Here is a diagram:", msgs[0].Parts[0].(session.TextPart).Markdown)
	})

	t.Run("skips malformed frames without losing text", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		body := sseBody(
			`{"type": "content", "content": "Hello "}`,
			`{not json at all`,
			`{"type": "content", "content": "world"}`,
			`{"type": "done"}`,
		)
		require.NoError(t, s.Run(ctx, body))

		require.Len(t, ft.finalized, 1)
		assert.Equal(t, "Hello world", ft.finalized[0])
	})

	t.Run("ignores frames with unknown types", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		body := sseBody(
			`{"type": "metadata", "content": "sources"}`,
			`{"type": "content", "content": "hi"}`,
			`{"type": "done"}`,
		)
		require.NoError(t, s.Run(ctx, body))
		require.Len(t, ft.finalized, 1)
		assert.Equal(t, "hi", ft.finalized[0])
	})

	t.Run("materializes on end of stream without a done event", func(t *testing.T) {
		ft := &fakeTranscript{}
		ft.ShowTyping()
		s := session.New(ft)

		body := sseBody(`{"type": "content", "content": "cut short"}`)
		require.NoError(t, s.Run(ctx, body))

		require.Len(t, ft.finalized, 1)
		assert.Equal(t, "cut short", ft.finalized[0])
		assert.False(t, ft.typingVisible)
	})

	t.Run("forces termination when the stream stalls", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		pr, pw := io.Pipe()
		go func() {
			fmt.Fprint(pw, "data: {\"type\": \"content\", \"content\": \"partial\"}\n\n")
			// Never write again and never close: the idle timeout has to
			// step in.
		}()

		done := make(chan error, 1)
		go func() {
			done <- s.Run(ctx, pr, session.WithIdleTimeout(30*time.Millisecond))
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("run did not terminate on idle stream")
		}

		require.Len(t, ft.finalized, 1)
		assert.Equal(t, "partial", ft.finalized[0])
	})

	t.Run("aborts cleanly on user cancellation", func(t *testing.T) {
		ft := &fakeTranscript{}
		ft.ShowTyping()
		s := session.New(ft)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		pr, pw := io.Pipe()
		defer pw.Close()
		err := s.Run(cancelled, pr)
		require.ErrorIs(t, err, session.ErrStopped)

		// No typing indicator, no error message, only the stop notice.
		assert.False(t, ft.typingVisible)
		assert.Empty(t, ft.messages())
		require.Len(t, ft.notices, 1)
		assert.Equal(t, session.NoticeInfo, ft.notices[0].level)
		assert.Contains(t, ft.notices[0].text, "Stopped by user")
	})

	t.Run("discards partial text on cancellation", func(t *testing.T) {
		ft := &fakeTranscript{}
		s := session.New(ft)

		cancelled, cancel := context.WithCancel(ctx)

		pr, pw := io.Pipe()
		go func() {
			fmt.Fprint(pw, "data: {\"type\": \"content\", \"content\": \"partial answer\"}\n\n")
			// Give the dispatcher a moment to open the text container.
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		err := s.Run(cancelled, pr)
		require.ErrorIs(t, err, session.ErrStopped)

		assert.Equal(t, 1, ft.discarded)
		assert.Empty(t, ft.finalized)
	})
}
