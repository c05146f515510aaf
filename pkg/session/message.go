package session

import "github.com/sagechat/sage/pkg/events"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one renderable unit inside a message. A plain answer has a single
// TextPart; a mixed message is a TextPart followed by tool results in their
// sorted order.
type Part interface {
	isPart()
}

// TextPart is the markdown text portion of a message.
type TextPart struct {
	Markdown string
}

func (TextPart) isPart() {}

// QuizPart is an interactive quiz fragment delivered as HTML.
type QuizPart struct {
	HTML string
}

func (QuizPart) isPart() {}

// DiagramPart is a generated diagram, addressable by image ID.
type DiagramPart struct {
	ImageID string
	Caption string
}

func (DiagramPart) isPart() {}

// YoutubePart is a block of recommended videos.
type YoutubePart struct {
	Videos []events.Video
}

func (YoutubePart) isPart() {}

// Message is a finalized transcript entry. Once appended it is never
// mutated; only the in-progress streaming text is updated in place, and
// that lives outside Message until it is finalized or combined.
type Message struct {
	ID        string
	Role      Role
	MessageID int64
	Parts     []Part
}
