// Package session holds the state machine behind one prompt submission: it
// dispatches stream events into an accumulating session and, when the
// stream completes, decides whether the pieces become one combined message
// or stay standalone.
package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sagechat/sage/pkg/events"
	"github.com/sagechat/sage/pkg/logger"
)

// DefaultQuizLead is the text shown above a quiz when the server sends none.
const DefaultQuizLead = "Here is your quiz:"

// QuizFetcher fetches rendered quiz HTML for a persisted message. The API
// client satisfies this; the session only needs the one call.
type QuizFetcher interface {
	QuizHTML(ctx context.Context, messageID int64) (string, error)
}

// sideElement is a tool result waiting for the combine decision, tagged
// with its sort key and arrival sequence.
type sideElement struct {
	part  Part
	order int
	seq   int
}

// Session accumulates one streamed response. It is exclusively owned by the
// goroutine running the stream loop; a new submission gets a fresh Session
// and the old one is discarded, never resumed.
type Session struct {
	id         string
	transcript Transcript
	quizzes    QuizFetcher
	log        *slog.Logger

	text        strings.Builder
	textOpen    bool
	mixed       bool
	side        []sideElement
	toolResults int
	finished    bool

	// pending tracks fire-and-forget quiz fetches so callers that need a
	// clean shutdown (headless mode, tests) can drain them.
	pending sync.WaitGroup
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithQuizFetcher enables out-of-band quiz rendering for
// trigger_quiz_render events. Without it those events are logged and
// dropped.
func WithQuizFetcher(f QuizFetcher) SessionOption {
	return func(s *Session) {
		s.quizzes = f
	}
}

// WithLogger overrides the session's logger.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// New creates a session painting into the given transcript.
func New(transcript Transcript, opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.NewString(),
		transcript: transcript,
		log:        logger.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's stream identifier.
func (s *Session) ID() string {
	return s.id
}

// Finished reports whether the session has been materialized.
func (s *Session) Finished() bool {
	return s.finished
}

// Wait blocks until all out-of-band work spawned by the session has
// completed.
func (s *Session) Wait() {
	s.pending.Wait()
}

// Handle routes one stream event. Events must be handed in arrival order;
// the session mutates its state synchronously so ordering is preserved.
func (s *Session) Handle(ctx context.Context, ev events.Event) {
	if s.finished {
		s.log.Debug("dropping event after stream finished", "kind", ev.Kind())
		return
	}

	switch e := ev.(type) {
	case events.TriggerQuizRender:
		s.handleTriggerQuizRender(ctx, e)
	case events.Quiz:
		s.handleQuiz(e)
	case events.MixedContentStart:
		// Explicit server signal: subsequent tool results belong together.
		// Authoritative over the auto-upgrade heuristic.
		s.mixed = true
		s.side = nil
		s.toolResults = 0
	case events.QuizHTMLFragment:
		s.toolResults++
		s.addToolResult(QuizPart{HTML: e.QuizHTML}, e.Order, func() {
			s.transcript.Append(Message{
				ID:    uuid.NewString(),
				Role:  RoleAssistant,
				Parts: []Part{QuizPart{HTML: e.QuizHTML}},
			})
		})
	case events.DiagramImage:
		s.toolResults++
		if e.ImageID == "" {
			s.transcript.Notify(NoticeError, "Received diagram response without an image ID")
			return
		}
		caption := e.Caption
		if caption == "" {
			caption = "Generated Diagram"
		}
		part := DiagramPart{ImageID: e.ImageID, Caption: caption}
		s.addToolResult(part, e.Order, func() {
			s.transcript.Append(Message{
				ID:        uuid.NewString(),
				Role:      RoleAssistant,
				MessageID: e.MessageID,
				Parts:     []Part{part},
			})
		})
	case events.YoutubeRecommendations:
		s.toolResults++
		part := YoutubePart{Videos: e.Videos}
		s.addToolResult(part, e.Order, func() {
			s.transcript.Append(Message{
				ID:    uuid.NewString(),
				Role:  RoleAssistant,
				Parts: []Part{part},
			})
		})
	case events.Content:
		s.handleContent(e)
	case events.StreamError:
		s.transcript.Notify(NoticeError, e.Message)
	case events.FileInfo:
		if e.Status == events.StatusTruncated && e.Message != "" {
			s.transcript.Notify(NoticeWarning, e.Message)
		}
	case events.Done:
		s.Finish()
	default:
		s.log.Debug("unhandled event", "kind", ev.Kind())
	}
}

func (s *Session) handleContent(e events.Content) {
	// Text arriving after a buffered tool result makes the message mixed.
	if !s.mixed && len(s.side) > 0 {
		s.mixed = true
	}

	s.text.WriteString(e.Text)
	if !s.textOpen {
		s.transcript.RemoveTyping()
		s.transcript.BeginAssistantText(s.id, e.Text)
		s.textOpen = true
		return
	}
	s.transcript.AppendAssistantText(s.id, e.Text)
}

// addToolResult applies the shared tool-result flow: auto-upgrade to mixed
// when another renderable unit already exists, then either buffer the part
// for the combine pass or render it standalone right away.
func (s *Session) addToolResult(part Part, order int, standalone func()) {
	if !s.mixed && (len(s.side) > 0 || s.textOpen) {
		s.mixed = true
	}

	if s.mixed {
		// The counter is the fallback sort key when the server omits an
		// explicit order, keeping arrival order deterministic.
		if order == 0 {
			order = s.toolResults
		}
		s.side = append(s.side, sideElement{part: part, order: order, seq: len(s.side)})
		return
	}

	s.transcript.RemoveTyping()
	standalone()
	s.resetTextContainer()
}

func (s *Session) handleQuiz(e events.Quiz) {
	s.transcript.RemoveTyping()
	s.resetTextContainer()

	lead := e.Content
	if lead == "" {
		lead = DefaultQuizLead
	}
	s.transcript.Append(Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		MessageID: e.MessageID,
		Parts:     []Part{TextPart{Markdown: lead}, QuizPart{HTML: e.QuizHTML}},
	})
	s.toolResults = 0
}

func (s *Session) handleTriggerQuizRender(ctx context.Context, e events.TriggerQuizRender) {
	s.resetTextContainer()
	s.toolResults = 0

	if e.MessageID == 0 {
		return
	}
	if s.quizzes == nil {
		s.log.Warn("no quiz fetcher configured, dropping quiz render trigger", "message_id", e.MessageID)
		return
	}

	// Out-of-band fetch. It may resolve after the stream's done event and
	// must survive the submission being cancelled, so it runs detached.
	fetchCtx := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		html, err := s.quizzes.QuizHTML(fetchCtx, e.MessageID)
		if err != nil {
			s.log.Error("fetching quiz html", "message_id", e.MessageID, "error", err)
			s.transcript.Notify(NoticeError, "Error rendering quiz: "+err.Error())
			return
		}
		if html == "" {
			return
		}
		s.transcript.Append(Message{
			ID:        uuid.NewString(),
			Role:      RoleAssistant,
			MessageID: e.MessageID,
			Parts:     []Part{QuizPart{HTML: html}},
		})
	}()
}

// resetTextContainer finalizes any in-progress text as its own message and
// clears the accumulation state, so whatever follows in the same stream
// starts a fresh message boundary.
func (s *Session) resetTextContainer() {
	if s.textOpen {
		s.transcript.FinalizeAssistantText(s.id, s.text.String())
		s.textOpen = false
	}
	s.text.Reset()
}

// Finish runs the materializer: given everything the stream accumulated,
// produce the final transcript state. Idempotent; calling it again is a
// no-op.
func (s *Session) Finish() {
	if s.finished {
		return
	}
	s.finished = true

	full := s.text.String()
	combine := (s.mixed && len(s.side) > 0) || s.toolResults > 1

	if combine {
		parts := make([]Part, 0, len(s.side)+1)
		if full != "" {
			parts = append(parts, TextPart{Markdown: full})
		}

		// Ascending by order key; ties keep arrival order.
		sort.SliceStable(s.side, func(i, j int) bool {
			return s.side[i].order < s.side[j].order
		})
		for _, el := range s.side {
			parts = append(parts, el.part)
		}

		// The standalone shell created for the in-progress text is
		// superseded by the combined message.
		if s.textOpen {
			s.transcript.DiscardAssistantText(s.id)
			s.textOpen = false
		}
		if len(parts) > 0 {
			s.transcript.Append(Message{
				ID:    uuid.NewString(),
				Role:  RoleAssistant,
				Parts: parts,
			})
		}
		s.side = nil
		s.toolResults = 0
		s.mixed = false
		s.text.Reset()
	} else if s.textOpen {
		s.transcript.FinalizeAssistantText(s.id, full)
		s.textOpen = false
	}

	s.transcript.RemoveTyping()
}

// abort discards partial output after a user cancellation and restores the
// transcript to a consistent state.
func (s *Session) abort() {
	if s.finished {
		return
	}
	s.finished = true

	if s.textOpen {
		s.transcript.DiscardAssistantText(s.id)
		s.textOpen = false
	}
	s.text.Reset()
	s.side = nil
	s.transcript.RemoveTyping()
	s.transcript.Notify(NoticeInfo, "Stopped by user.")
}
