// Package events defines the typed events carried by the chat response
// stream. Each SSE frame holds one JSON payload whose "type" field selects
// the variant; Parse decodes a payload into the matching event value.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant of a stream event.
type Kind string

const (
	KindContent                Kind = "content"
	KindQuiz                   Kind = "quiz"
	KindQuizHTML               Kind = "quiz_html"
	KindDiagramImage           Kind = "diagram_image"
	KindYoutubeRecommendations Kind = "youtube_recommendations"
	KindError                  Kind = "error"
	KindDone                   Kind = "done"
	KindTriggerQuizRender      Kind = "trigger_quiz_render"
	KindMixedContentStart      Kind = "mixed_content_start"
	KindFileInfo               Kind = "file_info"
)

// Event is one decoded frame from the response stream.
type Event interface {
	Kind() Kind
}

// Content is an incremental text delta of the assistant's answer.
type Content struct {
	Text string
}

func (Content) Kind() Kind { return KindContent }

// Quiz is a self-contained quiz delivered with its rendered HTML inline.
// It always becomes a standalone message.
type Quiz struct {
	Content   string
	QuizHTML  string
	MessageID int64
}

func (Quiz) Kind() Kind { return KindQuiz }

// QuizHTMLFragment is a quiz tool result that may be combined with other
// content into a single mixed message.
type QuizHTMLFragment struct {
	QuizHTML string
	Order    int
}

func (QuizHTMLFragment) Kind() Kind { return KindQuizHTML }

// DiagramImage announces a generated diagram, addressable by image ID.
type DiagramImage struct {
	ImageID   string
	Caption   string
	MessageID int64
	Order     int
}

func (DiagramImage) Kind() Kind { return KindDiagramImage }

// Video is one recommended video inside a YoutubeRecommendations event.
type Video struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Channel     string `json:"channel"`
	Thumbnail   string `json:"thumbnail"`
	URL         string `json:"url"`
}

// YoutubeRecommendations is a block of recommended videos.
type YoutubeRecommendations struct {
	Videos []Video
	Order  int
}

func (YoutubeRecommendations) Kind() Kind { return KindYoutubeRecommendations }

// StreamError is a server-reported error. It does not terminate the stream.
type StreamError struct {
	Message string
}

func (StreamError) Kind() Kind { return KindError }

// Done marks the end of the response stream.
type Done struct{}

func (Done) Kind() Kind { return KindDone }

// TriggerQuizRender asks the client to fetch and render quiz HTML for an
// already persisted message, out of band from the main stream.
type TriggerQuizRender struct {
	MessageID int64
}

func (TriggerQuizRender) Kind() Kind { return KindTriggerQuizRender }

// MixedContentStart signals that subsequent tool results belong together in
// one combined message.
type MixedContentStart struct{}

func (MixedContentStart) Kind() Kind { return KindMixedContentStart }

// FileInfo reports the processing status of an uploaded file, e.g. that its
// content was truncated before being sent to the model.
type FileInfo struct {
	Status  string
	Message string
}

func (FileInfo) Kind() Kind { return KindFileInfo }

// StatusTruncated is the FileInfo status for files cut down to fit the
// model's context.
const StatusTruncated = "truncated"

// envelope covers the union of fields across all frame payloads. The server
// is loose with numeric fields (order may arrive as a number or a numeric
// string), so those are decoded through flexInt.
type envelope struct {
	Type           string          `json:"type"`
	Content        string          `json:"content"`
	QuizHTML       string          `json:"quiz_html"`
	MessageID      flexInt         `json:"message_id"`
	DiagramImageID flexString      `json:"diagram_image_id"`
	TextContent    string          `json:"text_content"`
	Order          flexInt         `json:"order"`
	Data           json.RawMessage `json:"data"`
	Status         string          `json:"status"`
	Message        string          `json:"message"`
}

// Parse decodes one frame payload into its event variant. Unknown types
// return (nil, nil) so newer servers don't break older clients; malformed
// JSON returns an error and the caller is expected to skip the frame.
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding stream frame: %w", err)
	}

	switch Kind(env.Type) {
	case KindContent:
		return Content{Text: env.Content}, nil
	case KindQuiz:
		return Quiz{Content: env.Content, QuizHTML: env.QuizHTML, MessageID: int64(env.MessageID)}, nil
	case KindQuizHTML:
		return QuizHTMLFragment{QuizHTML: env.QuizHTML, Order: int(env.Order)}, nil
	case KindDiagramImage:
		return DiagramImage{
			ImageID:   string(env.DiagramImageID),
			Caption:   env.TextContent,
			MessageID: int64(env.MessageID),
			Order:     int(env.Order),
		}, nil
	case KindYoutubeRecommendations:
		var videos []Video
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &videos); err != nil {
				return nil, fmt.Errorf("decoding video recommendations: %w", err)
			}
		}
		return YoutubeRecommendations{Videos: videos, Order: int(env.Order)}, nil
	case KindError:
		return StreamError{Message: env.Content}, nil
	case KindDone:
		return Done{}, nil
	case KindTriggerQuizRender:
		return TriggerQuizRender{MessageID: int64(env.MessageID)}, nil
	case KindMixedContentStart:
		return MixedContentStart{}, nil
	case KindFileInfo:
		return FileInfo{Status: env.Status, Message: env.Message}, nil
	default:
		return nil, nil
	}
}

// flexInt decodes a JSON number, numeric string, or null into an int.
// Anything unparseable decodes to zero rather than failing the whole frame.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexString decodes a JSON string, number, or null into a string. The
// server sends database IDs as numbers but the client only ever uses them
// opaquely in URLs.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}
