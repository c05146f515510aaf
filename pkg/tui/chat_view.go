package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sagechat/sage/pkg/prefs"
	"github.com/sagechat/sage/pkg/session"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type noticeLevel = session.NoticeLevel

const (
	noticeInfo    = session.NoticeInfo
	noticeWarning = session.NoticeWarning
	noticeError   = session.NoticeError
)

// ChatView is the main chat interface: transcript above, typing
// indicator and input below, status bar at the bottom.
type ChatView struct {
	*tview.Flex

	app      *App
	messages *tview.TextView
	spinner  *tview.TextView
	input    *tview.InputField
	status   *tview.TextView

	// Transcript state. Finished blocks are rendered text; an in-progress
	// stream is shown raw below them and replaced when finalized.
	blocks       []string
	streamOpen   bool
	streamBuf    strings.Builder
	typing       bool
	spinnerFrame int

	sending bool
	stop    func()

	// Most recent interactive artifacts, opened from key bindings.
	lastQuizHTML string
	lastDiagram  *session.DiagramPart
}

// NewChatView creates the chat interface bound to the app.
func NewChatView(app *App) *ChatView {
	cv := &ChatView{
		Flex: tview.NewFlex().SetDirection(tview.FlexRow),
		app:  app,
	}

	cv.messages = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true)
	cv.messages.SetBorder(false)

	cv.spinner = tview.NewTextView().SetDynamicColors(true)

	cv.input = tview.NewInputField().
		SetLabel("> ").
		SetLabelColor(tcell.ColorOrange)
	cv.input.SetInputCapture(cv.handleInputKey)

	cv.status = tview.NewTextView().SetDynamicColors(true)
	cv.updateStatus()

	cv.AddItem(cv.messages, 0, 1, false)
	cv.AddItem(cv.spinner, 1, 0, false)
	cv.AddItem(cv.input, 1, 0, true)
	cv.AddItem(cv.status, 1, 0, false)

	return cv
}

func (cv *ChatView) handleInputKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter:
		text := strings.TrimSpace(cv.input.GetText())
		if text != "" && !cv.sending {
			cv.input.SetText("")
			cv.app.submit(text)
		}
		return nil
	case tcell.KeyEscape:
		if cv.sending && cv.stop != nil {
			// Swap of submit for stop: escape cancels the stream.
			cv.stop()
		}
		return nil
	case tcell.KeyPgUp:
		row, _ := cv.messages.GetScrollOffset()
		cv.messages.ScrollTo(row-10, 0)
		return nil
	case tcell.KeyPgDn:
		row, _ := cv.messages.GetScrollOffset()
		cv.messages.ScrollTo(row+10, 0)
		return nil
	case tcell.KeyCtrlR:
		cv.toggleMode(prefs.ModeRAG)
		return nil
	case tcell.KeyCtrlD:
		cv.toggleMode(prefs.ModeDiagram)
		return nil
	case tcell.KeyCtrlY:
		cv.toggleMode(prefs.ModeYoutube)
		return nil
	case tcell.KeyCtrlG:
		cv.app.generateQuiz()
		return nil
	case tcell.KeyCtrlQ:
		cv.app.openQuiz(cv.lastQuizHTML)
		return nil
	case tcell.KeyCtrlV:
		cv.app.openDiagram(cv.lastDiagram)
		return nil
	case tcell.KeyCtrlF:
		cv.app.openRAGManager()
		return nil
	case tcell.KeyCtrlC:
		cv.app.Stop()
		return nil
	}
	return event
}

func (cv *ChatView) toggleMode(mode prefs.Mode) {
	if _, err := cv.app.modes.Toggle(mode); err != nil {
		cv.appendNotice(noticeError, "Could not save mode preference: "+err.Error())
	}
	cv.updateStatus()
}

// updateStatus repaints the bottom bar: chat title, active mode, keys.
func (cv *ChatView) updateStatus() {
	title := cv.app.state.Title()
	if title == "" {
		if cv.app.state.IsNewChat() {
			title = "New Chat"
		} else {
			title = cv.app.state.ChatID()
		}
	}

	mode := "none"
	if active := cv.app.modes.Active(); active != prefs.ModeNone {
		mode = string(active)
	}

	cv.status.SetText(fmt.Sprintf(
		"[yellow]%s[-]  mode: [green]%s[-]  ^R rag  ^D diagram  ^Y youtube  ^G quiz  ^V image  ^F files",
		tview.Escape(title), mode,
	))
}

// setTyping shows or hides the typing indicator.
func (cv *ChatView) setTyping(on bool) {
	if on && !cv.typing {
		cv.spinnerFrame = 0
	}
	cv.typing = on
	cv.drawSpinner()
}

func (cv *ChatView) advanceSpinner() {
	cv.spinnerFrame = (cv.spinnerFrame + 1) % len(spinnerFrames)
	cv.drawSpinner()
}

func (cv *ChatView) drawSpinner() {
	if !cv.typing {
		cv.spinner.SetText("")
		return
	}
	cv.spinner.SetText(fmt.Sprintf("[gray]%s thinking[-]", spinnerFrames[cv.spinnerFrame]))
}

// setSending flips between the submit and stop affordances.
func (cv *ChatView) setSending(sending bool, stop func()) {
	cv.sending = sending
	cv.stop = stop
	if sending {
		cv.input.SetLabel("■ ")
	} else {
		cv.input.SetLabel("> ")
	}
}

// appendBlock adds finished content to the transcript and repaints.
func (cv *ChatView) appendBlock(rendered string) {
	if rendered == "" {
		return
	}
	cv.blocks = append(cv.blocks, rendered)
	cv.redraw()
}

func (cv *ChatView) appendNotice(level noticeLevel, text string) {
	cv.appendBlock(cv.app.renderer.Notice(level, text))
}

// appendUser echoes a submitted prompt into the transcript.
func (cv *ChatView) appendUser(prompt string) {
	cv.appendBlock(cv.app.renderer.Message(session.Message{
		Role:  session.RoleUser,
		Parts: []session.Part{session.TextPart{Markdown: prompt}},
	}))
}

// appendMessage adds a completed assistant message, remembering
// interactive artifacts for the modal key bindings.
func (cv *ChatView) appendMessage(msg session.Message) {
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case session.QuizPart:
			cv.lastQuizHTML = p.HTML
		case session.DiagramPart:
			diagram := p
			cv.lastDiagram = &diagram
		}
	}
	cv.appendBlock(cv.app.renderer.Message(msg))
}

// appendQuiz adds a generated quiz with the standard lead-in.
func (cv *ChatView) appendQuiz(quizHTML string) {
	cv.appendMessage(session.Message{
		Role: session.RoleAssistant,
		Parts: []session.Part{
			session.TextPart{Markdown: session.DefaultQuizLead},
			session.QuizPart{HTML: quizHTML},
		},
	})
}

// Streamed-text lifecycle, driven by the transcript bridge.

func (cv *ChatView) beginStream(seed string) {
	cv.streamOpen = true
	cv.streamBuf.Reset()
	cv.streamBuf.WriteString(seed)
	cv.redraw()
}

func (cv *ChatView) appendStream(chunk string) {
	if !cv.streamOpen {
		return
	}
	cv.streamBuf.WriteString(chunk)
	cv.redraw()
}

func (cv *ChatView) finalizeStream(full string) {
	if !cv.streamOpen {
		return
	}
	cv.streamOpen = false
	cv.streamBuf.Reset()
	cv.appendBlock(cv.app.renderer.Markdown(full))
}

func (cv *ChatView) discardStream() {
	cv.streamOpen = false
	cv.streamBuf.Reset()
	cv.redraw()
}

// redraw repaints the transcript view from the block list plus any
// in-progress stream.
func (cv *ChatView) redraw() {
	var b strings.Builder
	for _, block := range cv.blocks {
		b.WriteString(block)
		b.WriteString("\n")
	}
	if cv.streamOpen {
		b.WriteString(cv.streamBuf.String())
	}

	cv.messages.Clear()
	fmt.Fprint(tview.ANSIWriter(cv.messages), b.String())
	cv.messages.ScrollToEnd()
}
