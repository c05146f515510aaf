package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sagechat/sage/pkg/api"
	"github.com/sagechat/sage/pkg/render"
	"github.com/sagechat/sage/pkg/session"
	"github.com/sagechat/sage/pkg/state"
)

// Options configures a headless run.
type Options struct {
	Client *api.Client
	State  *state.State

	Prompt   string
	FilePath string
	Modes    api.ModeFlags

	// Out defaults to os.Stdout.
	Out io.Writer

	// IdleTimeout overrides the stream inactivity window when positive.
	IdleTimeout time.Duration

	// Width is the render width; zero means a sensible default.
	Width int
}

// Run executes a single prompt in headless mode: ensure the chat exists,
// submit the prompt, and stream the response to the console.
func Run(ctx context.Context, opts Options) error {
	if opts.Prompt == "" {
		return fmt.Errorf("prompt cannot be empty in headless mode")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Width <= 0 {
		opts.Width = 100
	}

	chatID, err := opts.State.EnsureChat(ctx, opts.Client)
	if err != nil {
		return fmt.Errorf("failed to prepare chat: %w", err)
	}

	sub := api.Submit{Prompt: opts.Prompt, Modes: opts.Modes}
	if opts.FilePath != "" {
		f, err := os.Open(opts.FilePath)
		if err != nil {
			return fmt.Errorf("failed to open attachment: %w", err)
		}
		defer f.Close()
		sub.FileName = filepath.Base(opts.FilePath)
		sub.File = f
	}

	body, err := opts.Client.StreamPrompt(ctx, chatID, sub)
	if err != nil {
		return fmt.Errorf("failed to submit prompt: %w", err)
	}

	renderer, err := render.New(opts.Width)
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	sess := session.New(NewConsole(opts.Out, renderer), session.WithQuizFetcher(opts.Client))

	var runOpts []session.RunOption
	if opts.IdleTimeout > 0 {
		runOpts = append(runOpts, session.WithIdleTimeout(opts.IdleTimeout))
	}

	runErr := sess.Run(ctx, body, runOpts...)

	// Quizzes triggered near the end of the stream resolve out of band;
	// drain them before returning so output is complete.
	sess.Wait()

	if errors.Is(runErr, session.ErrStopped) {
		return nil
	}
	return runErr
}
