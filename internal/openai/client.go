// Package openai is a client for the OpenAI Assistants and chat-completions
// APIs, limited to the operations the conversation engine needs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned on 404 responses; for thread endpoints it means
	// the remote thread no longer exists and the mapping must be re-created.
	ErrNotFound = errors.New("openai: resource not found")
	// ErrRunTimeout is returned when a run does not reach a terminal state
	// within the configured wall-clock bound.
	ErrRunTimeout = errors.New("openai: run polling timed out")
)

// Client talks to the Assistants API (v2) over plain HTTP.
type Client struct {
	baseURL      string
	apiKey       string
	logger       *slog.Logger
	http         *http.Client
	pollInterval time.Duration
	runTimeout   time.Duration
}

// NewClient validates the connection parameters and builds a client.
func NewClient(log *slog.Logger, baseURL, apiKey string, pollInterval, runTimeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("openai client: base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai client: api key is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if runTimeout <= 0 {
		runTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		logger:       log.With(slog.String("client", "openai")),
		http:         &http.Client{Timeout: 60 * time.Second},
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
	}, nil
}

// CreateThread creates a new provider thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// AddMessage appends a message to a thread.
func (c *Client) AddMessage(ctx context.Context, threadID, role, content string) error {
	body := map[string]string{"role": role, "content": content}
	return c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", body, nil)
}

// CreateRun starts an assistant run against a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	var run Run
	body := map[string]string{"assistant_id": assistantID}
	err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", body, &run)
	return run, err
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	err := c.do(ctx, http.MethodGet,
		"/threads/"+url.PathEscape(threadID)+"/runs/"+url.PathEscape(runID), nil, &run)
	return run, err
}

// WaitForRun polls the run at the configured interval until it reaches a
// terminal state or the wall-clock bound elapses.
func (c *Client) WaitForRun(ctx context.Context, threadID, runID string) (Run, error) {
	deadline := time.Now().Add(c.runTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		run, err := c.GetRun(ctx, threadID, runID)
		if err != nil {
			return Run{}, err
		}
		if run.Terminal() {
			return run, nil
		}
		if time.Now().After(deadline) {
			return run, ErrRunTimeout
		}
		select {
		case <-ctx.Done():
			return Run{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListMessages returns up to limit messages of a thread, most recent first.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]ThreadMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	var out struct {
		Data []ThreadMessage `json:"data"`
	}
	path := fmt.Sprintf("/threads/%s/messages?order=desc&limit=%d", url.PathEscape(threadID), limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// LatestAssistantMessage returns the text of the newest assistant message in
// the thread, or an error when none exists.
func (c *Client) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	msgs, err := c.ListMessages(ctx, threadID, 20)
	if err != nil {
		return "", err
	}
	for _, m := range msgs {
		if m.Role == "assistant" {
			if text := strings.TrimSpace(m.Text()); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("openai: thread %s has no assistant reply", threadID)
}

// GetAssistant fetches the assistant record (name, model, instructions).
func (c *Client) GetAssistant(ctx context.Context, assistantID string) (Assistant, error) {
	var a Assistant
	err := c.do(ctx, http.MethodGet, "/assistants/"+url.PathEscape(assistantID), nil, &a)
	return a, err
}

// ChatCompletion is the direct completion fallback used when the assistant
// run path fails.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	var out struct {
		Choices []struct {
			Message ChatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai: completion response missing content")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
