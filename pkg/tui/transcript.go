package tui

import (
	"github.com/sagechat/sage/pkg/session"
)

// transcript bridges the session's transcript callbacks onto the UI
// goroutine. The session runs on the stream goroutine; every mutation is
// queued so the view only ever changes under the event loop.
type transcript struct {
	app *App
}

func newTranscript(app *App) *transcript {
	return &transcript{app: app}
}

func (t *transcript) ShowTyping() {
	t.app.queue(func() { t.app.chat.setTyping(true) })
}

func (t *transcript) RemoveTyping() {
	t.app.queue(func() { t.app.chat.setTyping(false) })
}

func (t *transcript) BeginAssistantText(streamID, seed string) {
	t.app.queue(func() { t.app.chat.beginStream(seed) })
}

func (t *transcript) AppendAssistantText(streamID, chunk string) {
	t.app.queue(func() { t.app.chat.appendStream(chunk) })
}

func (t *transcript) FinalizeAssistantText(streamID, full string) {
	t.app.queue(func() { t.app.chat.finalizeStream(full) })
}

func (t *transcript) DiscardAssistantText(streamID string) {
	t.app.queue(func() { t.app.chat.discardStream() })
}

func (t *transcript) Append(msg session.Message) {
	t.app.queue(func() { t.app.chat.appendMessage(msg) })
}

func (t *transcript) Notify(level session.NoticeLevel, text string) {
	t.app.queue(func() { t.app.chat.appendNotice(level, text) })
}
