// Package jira wraps the tracker REST API for the operations the bridge
// performs: reading issues, posting comments, and creating tickets for
// WhatsApp-originated conversations.
package jira

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

	"golang.org/x/time/rate"
)

// ErrIssueNotFound is returned on 404 responses for issue endpoints.
var ErrIssueNotFound = errors.New("jira: issue not found")

// Client talks to the tracker REST API with basic auth and a bounded
// outbound request rate.
type Client struct {
	baseURL string
	email   string
	token   string
	logger  *slog.Logger
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient validates connection parameters and builds a client.
func NewClient(log *slog.Logger, baseURL, email, token string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("jira client: base url is required")
	}
	if strings.TrimSpace(email) == "" || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("jira client: email and api token are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		email:   email,
		token:   token,
		logger:  log.With(slog.String("client", "jira")),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}, nil
}

// GetIssue fetches an issue by key.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (Issue, error) {
	var issue Issue
	err := c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(issueKey), nil, &issue)
	return issue, err
}

// AddComment posts a plain-text comment (rendered as an ADF document) to an
// issue and returns the created comment id.
func (c *Client) AddComment(ctx context.Context, issueKey, text string) (string, error) {
	body := map[string]any{"body": adfDocument(text)}
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+url.PathEscape(issueKey)+"/comment", body, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListComments returns the comments of an issue in creation order.
func (c *Client) ListComments(ctx context.Context, issueKey string) ([]Comment, error) {
	var out struct {
		Comments []Comment `json:"comments"`
	}
	err := c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(issueKey)+"/comment", nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// TransitionIssue moves an issue through a workflow transition.
func (c *Client) TransitionIssue(ctx context.Context, issueKey, transitionID string) error {
	body := map[string]any{
		"transition": map[string]string{"id": transitionID},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+url.PathEscape(issueKey)+"/transitions", body, nil)
}

// CreateIssue files a new issue and returns its key. Used for new WhatsApp
// conversations that have no ticket yet.
func (c *Client) CreateIssue(ctx context.Context, projectKey, summary, description string) (string, error) {
	body := map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": projectKey},
			"issuetype":   map[string]string{"name": "Task"},
			"summary":     summary,
			"description": adfDocument(description),
		},
	}
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", body, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

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
	req.SetBasicAuth(c.email, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrIssueNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jira: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
