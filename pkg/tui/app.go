// Package tui is the interactive chat interface: a transcript view, an
// input field, typing indicator, mode toggles, and modals for diagrams,
// quizzes, and RAG file management.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rivo/tview"

	"github.com/sagechat/sage/pkg/api"
	"github.com/sagechat/sage/pkg/config"
	"github.com/sagechat/sage/pkg/logger"
	"github.com/sagechat/sage/pkg/prefs"
	"github.com/sagechat/sage/pkg/quiz"
	"github.com/sagechat/sage/pkg/render"
	"github.com/sagechat/sage/pkg/state"
)

const spinnerInterval = 120 * time.Millisecond

// App owns the application lifecycle: the tview event loop, the pages
// stack, and the wiring between views and the backend client.
type App struct {
	ui    *tview.Application
	pages *tview.Pages
	chat  *ChatView

	client   *api.Client
	state    *state.State
	modes    *prefs.Store
	cfg      *config.Config
	renderer *render.Renderer
	log      *slog.Logger

	// queue schedules fn on the UI goroutine. Tests replace it with a
	// direct call so views can be driven without a screen.
	queue func(fn func())
}

// New assembles the application around an existing client and state.
func New(client *api.Client, st *state.State, modes *prefs.Store, cfg *config.Config) (*App, error) {
	renderer, err := render.New(80)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	a := &App{
		ui:       tview.NewApplication(),
		pages:    tview.NewPages(),
		client:   client,
		state:    st,
		modes:    modes,
		cfg:      cfg,
		renderer: renderer,
		log:      logger.WithComponent("tui"),
	}
	a.queue = func(fn func()) {
		a.ui.QueueUpdateDraw(fn)
	}

	a.chat = NewChatView(a)
	a.pages.AddPage("chat", a.chat, true, true)
	a.ui.SetRoot(a.pages, true)

	st.Subscribe(func(c state.Change) {
		a.queue(func() { a.chat.updateStatus() })
	})

	return a, nil
}

// Run starts the event loop and blocks until the app exits.
func (a *App) Run() error {
	stopSpinner := a.startSpinner()
	defer stopSpinner()

	if err := a.ui.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// Stop terminates the event loop.
func (a *App) Stop() {
	a.ui.Stop()
}

// startSpinner animates the typing indicator while it is visible.
func (a *App) startSpinner() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.queue(func() {
					if a.chat.typing {
						a.chat.advanceSpinner()
					}
				})
			}
		}
	}()
	return func() { close(done) }
}

// openModal pushes a page above the chat view.
func (a *App) openModal(name string, p tview.Primitive) {
	a.pages.AddPage(name, p, true, true)
	a.ui.SetFocus(p)
}

// closeModal removes a page and returns focus to the chat input.
func (a *App) closeModal(name string) {
	a.pages.RemovePage(name)
	a.ui.SetFocus(a.chat.input)
}

// quizPolicy resolves the configured grading policy.
func (a *App) quizPolicy() quiz.Policy {
	return quiz.ParsePolicy(a.cfg.Quiz.RetryPolicy)
}

// generateQuiz asks the backend for a quiz over the current chat and
// appends it to the transcript.
func (a *App) generateQuiz() {
	chatID := a.state.ChatID()
	if chatID == "" {
		a.chat.appendNotice(noticeWarning, "Start a conversation before generating a quiz.")
		return
	}

	a.chat.setTyping(true)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		resp, err := a.client.GenerateQuiz(ctx, chatID)
		a.queue(func() {
			a.chat.setTyping(false)
			if err != nil {
				a.log.Error("generating quiz", "error", err)
				a.chat.appendNotice(noticeError, "Error generating quiz: "+err.Error())
				return
			}
			a.chat.appendQuiz(resp.QuizHTML)
		})
	}()
}
