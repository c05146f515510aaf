// Package api is the HTTP client for the sage chat backend: chat CRUD,
// prompt submission returning an SSE response body, quiz generation, RAG
// file management, and diagram image retrieval.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sagechat/sage/pkg/logger"
)

// DefaultTimeout bounds non-streaming requests. Streaming requests are
// bounded by caller cancellation instead.
const DefaultTimeout = 60 * time.Second

// Client talks to one chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	streaming  *http.Client
	log        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the timeout for non-streaming requests.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client for non-streaming
// requests, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		// No client timeout on the streaming path: a response can
		// legitimately take minutes to drain.
		streaming: &http.Client{},
		log:       logger.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateChatResponse is the backend's reply to a chat creation request.
type CreateChatResponse struct {
	Success     bool   `json:"success"`
	ChatID      string `json:"chat_id"`
	RedirectURL string `json:"redirect_url"`
	Title       string `json:"title"`
}

// CreateChat creates a new chat and returns its ID.
func (c *Client) CreateChat(ctx context.Context) (CreateChatResponse, error) {
	var resp CreateChatResponse
	if err := c.postForm(ctx, "/chat/create/", nil, &resp); err != nil {
		return CreateChatResponse{}, fmt.Errorf("creating chat: %w", err)
	}
	return resp, nil
}

// ModeFlags carries the mutually exclusive feature-mode switches submitted
// with every prompt.
type ModeFlags struct {
	RAG     bool
	Diagram bool
	Youtube bool
}

// Submit is one prompt submission.
type Submit struct {
	Prompt   string
	FileName string
	File     io.Reader
	Modes    ModeFlags
}

// StreamPrompt submits a prompt and returns the raw SSE response body. The
// caller owns the body and aborts the stream by cancelling ctx (the
// user-visible stop action).
func (c *Client) StreamPrompt(ctx context.Context, chatID string, sub Submit) (io.ReadCloser, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("prompt", sub.Prompt); err != nil {
		return nil, fmt.Errorf("building prompt form: %w", err)
	}
	if err := w.WriteField("rag_mode_active", strconv.FormatBool(sub.Modes.RAG)); err != nil {
		return nil, fmt.Errorf("building prompt form: %w", err)
	}
	if err := w.WriteField("diagram_mode_active", strconv.FormatBool(sub.Modes.Diagram)); err != nil {
		return nil, fmt.Errorf("building prompt form: %w", err)
	}
	if err := w.WriteField("youtube_mode_active", strconv.FormatBool(sub.Modes.Youtube)); err != nil {
		return nil, fmt.Errorf("building prompt form: %w", err)
	}
	if sub.File != nil {
		part, err := w.CreateFormFile("file", sub.FileName)
		if err != nil {
			return nil, fmt.Errorf("attaching file: %w", err)
		}
		if _, err := io.Copy(part, sub.File); err != nil {
			return nil, fmt.Errorf("copying file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/chat/%s/stream/", chatID), &buf)
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streaming.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting prompt: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}

	c.log.Debug("stream opened", "chat_id", chatID)
	return resp.Body, nil
}

// ClearChat removes all messages from a chat.
func (c *Client) ClearChat(ctx context.Context, chatID string) error {
	if err := c.postForm(ctx, fmt.Sprintf("/chat/%s/clear/", url.PathEscape(chatID)), nil, nil); err != nil {
		return fmt.Errorf("clearing chat: %w", err)
	}
	return nil
}

// DeleteChat deletes a chat entirely.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	if err := c.postForm(ctx, fmt.Sprintf("/chat/%s/delete/", url.PathEscape(chatID)), nil, nil); err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	return nil
}

// UpdateTitle renames a chat.
func (c *Client) UpdateTitle(ctx context.Context, chatID, title string) error {
	fields := url.Values{"title": {title}}
	if err := c.postForm(ctx, fmt.Sprintf("/chat/%s/update-title/", url.PathEscape(chatID)), fields, nil); err != nil {
		return fmt.Errorf("updating chat title: %w", err)
	}
	return nil
}

// QuizResponse is the backend's reply to quiz generation.
type QuizResponse struct {
	QuizHTML  string `json:"quiz_html"`
	MessageID int64  `json:"message_id"`
}

// GenerateQuiz asks the backend to build a quiz from the chat so far.
func (c *Client) GenerateQuiz(ctx context.Context, chatID string) (QuizResponse, error) {
	var resp QuizResponse
	if err := c.postForm(ctx, fmt.Sprintf("/chat/%s/quiz/", url.PathEscape(chatID)), nil, &resp); err != nil {
		return QuizResponse{}, fmt.Errorf("generating quiz: %w", err)
	}
	return resp, nil
}

// QuizHTML fetches the rendered quiz HTML for a persisted message. This is
// the out-of-band fetch behind trigger_quiz_render events.
func (c *Client) QuizHTML(ctx context.Context, messageID int64) (string, error) {
	var resp struct {
		QuizHTML string `json:"quiz_html"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/chat/quiz_html/%d/", messageID), &resp); err != nil {
		return "", fmt.Errorf("fetching quiz html: %w", err)
	}
	return resp.QuizHTML, nil
}

// DiagramImage downloads a generated diagram by image ID.
func (c *Client) DiagramImage(ctx context.Context, imageID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/chat/diagram_image/%s/", imageID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating diagram request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching diagram: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading diagram: %w", err)
	}
	return data, nil
}

func (c *Client) url(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			escaped[i] = url.PathEscape(s)
		} else {
			escaped[i] = a
		}
	}
	return c.baseURL + fmt.Sprintf(format, escaped...)
}

// postForm sends a urlencoded POST and optionally decodes a JSON response
// into out.
func (c *Client) postForm(ctx context.Context, path string, fields url.Values, out any) error {
	var body io.Reader
	if fields != nil {
		body = strings.NewReader(fields.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if fields != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError reads the error body of a non-200 response, preferring the
// backend's {"error": "..."} shape over raw bytes.
func (c *Client) statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
