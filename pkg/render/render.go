// Package render turns transcript messages into styled terminal text.
// Markdown goes through glamour, quiz code snippets through chroma, and
// message chrome through lipgloss.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sagechat/sage/pkg/events"
	"github.com/sagechat/sage/pkg/logger"
	"github.com/sagechat/sage/pkg/session"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("10"))

	noticeStyles = map[session.NoticeLevel]lipgloss.Style{
		session.NoticeInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
		session.NoticeWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		session.NoticeError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}

	attachmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")).
			PaddingLeft(2)
)

// Renderer formats messages for a terminal of a fixed width.
type Renderer struct {
	width    int
	markdown *glamour.TermRenderer
}

// New creates a renderer wrapping output at width columns.
func New(width int) (*Renderer, error) {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	return &Renderer{width: width, markdown: md}, nil
}

// Markdown renders markdown source to styled terminal text. On render
// failure the raw source comes back so content is never lost.
func (r *Renderer) Markdown(source string) string {
	rendered, err := r.markdown.Render(source)
	if err != nil {
		logger.WithComponent("render").Warn("markdown render failed, falling back to raw text", "error", err)
		return source
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}

// Message renders a full transcript message: a role label followed by
// each part in order.
func (r *Renderer) Message(msg session.Message) string {
	var b strings.Builder

	switch msg.Role {
	case session.RoleUser:
		b.WriteString(userLabelStyle.Render("You"))
	default:
		b.WriteString(assistantLabelStyle.Render("Sage"))
	}
	b.WriteString("\n")

	for _, part := range msg.Parts {
		b.WriteString(r.Part(part))
	}
	return b.String()
}

// Part renders a single message part.
func (r *Renderer) Part(part session.Part) string {
	switch p := part.(type) {
	case session.TextPart:
		return r.Markdown(p.Markdown)
	case session.QuizPart:
		return r.QuizFragment(p.HTML)
	case session.DiagramPart:
		return r.Diagram(p)
	case session.YoutubePart:
		return r.Youtube(p.Videos)
	default:
		return ""
	}
}

// Diagram renders a diagram attachment line. The image itself opens in
// the viewer; the transcript carries a caption and a hint.
func (r *Renderer) Diagram(p session.DiagramPart) string {
	caption := p.Caption
	if caption == "" {
		caption = "Diagram"
	}
	return attachmentStyle.Render(fmt.Sprintf("[%s] press enter to view", caption)) + "\n"
}

// Youtube renders a recommended-videos list.
func (r *Renderer) Youtube(videos []events.Video) string {
	if len(videos) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(assistantLabelStyle.Render("Recommended videos") + "\n")
	for _, v := range videos {
		title := v.Title
		if title == "" {
			title = v.VideoID
		}
		line := fmt.Sprintf("  %s", title)
		if v.Channel != "" {
			line += fmt.Sprintf(" (%s)", v.Channel)
		}
		b.WriteString(line + "\n")
		if v.URL != "" {
			b.WriteString(attachmentStyle.Render(v.URL) + "\n")
		}
	}
	return b.String()
}

// Notice renders an out-of-band transcript notice.
func (r *Renderer) Notice(level session.NoticeLevel, text string) string {
	style, ok := noticeStyles[level]
	if !ok {
		style = noticeStyles[session.NoticeInfo]
	}
	return style.Render(text) + "\n"
}
