package session

// NoticeLevel classifies transient system notifications.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

// String returns the string representation of the notice level.
func (l NoticeLevel) String() string {
	switch l {
	case NoticeInfo:
		return "info"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Transcript is where the session paints. The TUI, the headless console
// writer, and test fakes all implement it; the session never touches a
// screen directly.
//
// The streaming text methods are keyed by stream ID so a transcript can
// host the in-progress text of one submission while a stale session is
// still draining.
type Transcript interface {
	// ShowTyping displays the typing indicator placeholder.
	ShowTyping()

	// RemoveTyping removes the typing indicator if present. Safe to call
	// when no indicator is showing.
	RemoveTyping()

	// BeginAssistantText opens the in-progress assistant text container,
	// seeded with the first delta.
	BeginAssistantText(streamID, seed string)

	// AppendAssistantText appends a raw delta to the in-progress text.
	// Implementations may reveal it immediately (typewriter style); the
	// markdown parse happens once, at finalization.
	AppendAssistantText(streamID, delta string)

	// FinalizeAssistantText replaces the in-progress text with its final
	// rendered form.
	FinalizeAssistantText(streamID, full string)

	// DiscardAssistantText removes the in-progress text container without
	// finalizing it, e.g. when its content is folded into a combined
	// message or the user stopped the stream.
	DiscardAssistantText(streamID string)

	// Append adds a finalized message to the transcript.
	Append(msg Message)

	// Notify surfaces a transient system notification.
	Notify(level NoticeLevel, text string)
}
