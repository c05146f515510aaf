package tui

import (
	"context"
	"errors"
	"time"

	"github.com/sagechat/sage/pkg/api"
	"github.com/sagechat/sage/pkg/session"
)

const maxTitleLength = 50

// submit runs one prompt submission end to end: echo the prompt, create
// the chat if needed, stream the response into the transcript.
func (a *App) submit(prompt string) {
	cv := a.chat
	cv.appendUser(prompt)
	cv.setTyping(true)

	ctx, cancel := context.WithCancel(context.Background())
	cv.setSending(true, cancel)

	wasNew := a.state.IsNewChat()
	rag, diagram, youtube := a.modes.Active().Flags()

	go func() {
		defer cancel()
		defer a.queue(func() {
			cv.setTyping(false)
			cv.setSending(false, nil)
		})

		chatID, err := a.state.EnsureChat(ctx, a.client)
		if err != nil {
			a.log.Error("ensuring chat", "error", err)
			a.notify(noticeError, "Could not start the chat: "+err.Error())
			return
		}

		body, err := a.client.StreamPrompt(ctx, chatID, api.Submit{
			Prompt: prompt,
			Modes:  api.ModeFlags{RAG: rag, Diagram: diagram, Youtube: youtube},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				a.notify(noticeInfo, "Stopped by user.")
				return
			}
			a.log.Error("submitting prompt", "error", err)
			a.notify(noticeError, "Error sending message: "+err.Error())
			return
		}

		sess := session.New(newTranscript(a), session.WithQuizFetcher(a.client))
		runErr := sess.Run(ctx, body, session.WithIdleTimeout(a.cfg.Stream.IdleTimeout))
		switch {
		case errors.Is(runErr, session.ErrStopped):
			// Expected termination; the session already posted the notice.
			return
		case runErr != nil:
			a.log.Error("streaming response", "error", runErr)
			a.notify(noticeError, "Error receiving response: "+runErr.Error())
			return
		}

		if wasNew {
			a.updateTitleFromPrompt(chatID, prompt)
		}
	}()
}

// notify posts a notice from a background goroutine.
func (a *App) notify(level noticeLevel, text string) {
	a.queue(func() { a.chat.appendNotice(level, text) })
}

// updateTitleFromPrompt derives the chat title from the first prompt of
// a new chat, mirroring the sidebar behavior of the web client. Failures
// are logged but never surfaced; the title is cosmetic.
func (a *App) updateTitleFromPrompt(chatID, prompt string) {
	title := prompt
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength]) + "..."
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.client.UpdateTitle(ctx, chatID, title); err != nil {
		a.log.Warn("updating chat title", "error", err)
		return
	}
	a.state.SetTitle(title)
}
