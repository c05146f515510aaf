package headless

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagechat/sage/pkg/api"
	"github.com/sagechat/sage/pkg/render"
	"github.com/sagechat/sage/pkg/session"
	"github.com/sagechat/sage/pkg/state"
)

func TestConsole(t *testing.T) {
	newConsole := func(t *testing.T) (*Console, *bytes.Buffer) {
		t.Helper()
		r, err := render.New(80)
		require.NoError(t, err)
		var buf bytes.Buffer
		return NewConsole(&buf, r), &buf
	}

	t.Run("should print streamed text incrementally", func(t *testing.T) {
		c, buf := newConsole(t)

		c.BeginAssistantText("s1", "Hello ")
		c.AppendAssistantText("s1", "world")
		c.FinalizeAssistantText("s1", "Hello world")

		assert.Equal(t, "Hello world\n", buf.String())
	})

	t.Run("should not reprint text discarded by the combine pass", func(t *testing.T) {
		c, buf := newConsole(t)

		c.BeginAssistantText("s1", "Some context")
		c.DiscardAssistantText("s1")
		c.Append(session.Message{Role: session.RoleAssistant, Parts: []session.Part{
			session.TextPart{Markdown: "Some context"},
			session.DiagramPart{ImageID: "img-1", Caption: "Flow"},
		}})

		out := buf.String()
		assert.Equal(t, 1, strings.Count(out, "Some context"))
		assert.Contains(t, out, "Flow")
	})

	t.Run("should print notices", func(t *testing.T) {
		c, buf := newConsole(t)
		c.Notify(session.NoticeInfo, "Stopped by user.")
		assert.Contains(t, buf.String(), "Stopped by user.")
	})
}

func TestRun(t *testing.T) {
	t.Run("should create the chat lazily and stream the reply", func(t *testing.T) {
		var streamedChat string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/chat/create/":
				w.Write([]byte(`{"success": true, "chat_id": "c1", "title": "New Chat"}`))
			case strings.HasSuffix(r.URL.Path, "/stream/"):
				streamedChat = strings.Split(r.URL.Path, "/")[2]
				w.Header().Set("Content-Type", "text/event-stream")
				w.Write([]byte("data: {\"type\": \"content\", \"content\": \"The answer is 4.\"}\n\n"))
				w.Write([]byte("data: {\"type\": \"done\"}\n\n"))
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		var buf bytes.Buffer
		err := Run(context.Background(), Options{
			Client: api.NewClient(srv.URL),
			State:  state.New(""),
			Prompt: "What is 2+2?",
			Out:    &buf,
		})
		require.NoError(t, err)
		assert.Equal(t, "c1", streamedChat)
		assert.Contains(t, buf.String(), "The answer is 4.")
	})

	t.Run("should reject an empty prompt", func(t *testing.T) {
		err := Run(context.Background(), Options{Prompt: ""})
		require.Error(t, err)
	})
}
