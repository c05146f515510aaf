// Package headless runs a single prompt without the TUI, streaming the
// response straight to the console. This is the scripting and CI surface.
package headless

import (
	"fmt"
	"io"
	"sync"

	"github.com/sagechat/sage/pkg/render"
	"github.com/sagechat/sage/pkg/session"
)

// Console is a transcript that writes to a terminal as events arrive.
// Streamed text prints incrementally as raw markdown; completed messages
// go through the renderer.
type Console struct {
	mu        sync.Mutex
	out       io.Writer
	renderer  *render.Renderer
	streaming bool

	// Console output cannot be unprinted. When the combine pass discards
	// the streamed text shell, the text is already on screen, so the
	// combined message that follows only prints its attachments.
	skipNextText bool
}

// NewConsole creates a console transcript writing to out.
func NewConsole(out io.Writer, renderer *render.Renderer) *Console {
	return &Console{out: out, renderer: renderer}
}

// ShowTyping is a no-op; a console stream has no typing indicator.
func (c *Console) ShowTyping() {}

// RemoveTyping is a no-op; see ShowTyping.
func (c *Console) RemoveTyping() {}

func (c *Console) BeginAssistantText(streamID, seed string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = true
	fmt.Fprint(c.out, seed)
}

func (c *Console) AppendAssistantText(streamID, chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, chunk)
}

func (c *Console) FinalizeAssistantText(streamID, full string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		fmt.Fprintln(c.out)
		c.streaming = false
	}
}

func (c *Console) DiscardAssistantText(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		fmt.Fprintln(c.out)
		c.streaming = false
		c.skipNextText = true
	}
}

func (c *Console) Append(msg session.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, part := range msg.Parts {
		if _, ok := part.(session.TextPart); ok && c.skipNextText {
			continue
		}
		fmt.Fprint(c.out, c.renderer.Part(part))
	}
	c.skipNextText = false
}

func (c *Console) Notify(level session.NoticeLevel, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, c.renderer.Notice(level, text))
}
