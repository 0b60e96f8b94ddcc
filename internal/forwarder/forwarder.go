// Package forwarder delivers processed turns to user-configured webhook
// URLs, with optional field filtering, and records raw inbound webhooks
// for later inspection.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movonte/deskbridge/internal/services"
)

// Payload is the document posted to a forwarding URL. The key names are
// part of the external contract; consumers match on them verbatim.
type Payload struct {
	IssueKey      string         `json:"issueKey,omitempty"`
	Message       string         `json:"message"`
	Author        string         `json:"author,omitempty"`
	Timestamp     string         `json:"timestamp"`
	Source        string         `json:"source"`
	ThreadID      string         `json:"threadId,omitempty"`
	AssistantID   string         `json:"assistantId,omitempty"`
	AssistantName string         `json:"assistantName,omitempty"`
	Response      string         `json:"response,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// ConfigSource resolves the forwarding config for a user and service.
// *services.Service satisfies it.
type ConfigSource interface {
	GetWebhookConfig(ctx context.Context, userID, serviceID string) (services.WebhookConfig, error)
}

// Service evaluates forwarding configs and posts payloads.
type Service struct {
	configs ConfigSource
	client  *http.Client
	logger  *slog.Logger
}

func NewService(log *slog.Logger, configs ConfigSource, timeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		configs: configs,
		client:  &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("service", "forwarder")),
	}
}

// ForwardResponse posts the payload to the user's configured URL when
// forwarding is enabled and the filter admits the payload. Delivery
// failures are logged, never returned: forwarding is best effort.
func (s *Service) ForwardResponse(ctx context.Context, userID, serviceID string, payload Payload) {
	cfg, err := s.configs.GetWebhookConfig(ctx, userID, serviceID)
	if err != nil {
		s.logger.Error("load webhook config failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}
	if !cfg.IsEnabled || cfg.URL == "" {
		return
	}
	if cfg.FilterEnabled && !matchesFilter(cfg, payload) {
		s.logger.Info("payload filtered out",
			slog.String("user_id", userID),
			slog.String("condition", cfg.FilterCondition))
		return
	}
	if err := s.post(ctx, cfg.URL, payload); err != nil {
		s.logger.Error("forward webhook failed",
			slog.String("url", cfg.URL),
			slog.Any("error", err))
		return
	}
	s.logger.Info("forwarded response",
		slog.String("user_id", userID),
		slog.String("service_id", serviceID))
}

func (s *Service) post(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post payload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("forward target returned status %d", resp.StatusCode)
	}
	return nil
}

// matchesFilter applies the configured condition to the payload's issue
// key. Unknown conditions admit everything so a typo never silently drops
// traffic.
func matchesFilter(cfg services.WebhookConfig, payload Payload) bool {
	key := strings.ToLower(payload.IssueKey)
	value := strings.ToLower(cfg.FilterValue)
	switch cfg.FilterCondition {
	case "equals":
		return key == value
	case "not_equals":
		return key != value
	case "contains":
		return strings.Contains(key, value)
	default:
		return true
	}
}

// Capture persists raw inbound webhook bodies.
type Capture struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewCapture(log *slog.Logger, pool *pgxpool.Pool) *Capture {
	if log == nil {
		log = slog.Default()
	}
	return &Capture{pool: pool, logger: log.With(slog.String("service", "webhook_capture"))}
}

// SavedWebhook is one recorded inbound webhook.
type SavedWebhook struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Save records one inbound webhook body. Invalid JSON is stored as a
// quoted string so nothing is lost.
func (c *Capture) Save(ctx context.Context, userID, source string, payload []byte) error {
	if !json.Valid(payload) {
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return fmt.Errorf("quote payload: %w", err)
		}
		payload = quoted
	}
	_, err := c.pool.Exec(ctx, `
		INSERT INTO saved_webhooks (user_id, source, payload)
		VALUES ($1, $2, $3)`, userID, source, payload)
	if err != nil {
		return fmt.Errorf("save webhook: %w", err)
	}
	return nil
}

// List returns the most recent captures for a user, newest first.
func (c *Capture) List(ctx context.Context, userID string, limit int) ([]SavedWebhook, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := c.pool.Query(ctx, `
		SELECT id, user_id, source, payload, received_at
		FROM saved_webhooks
		WHERE user_id = $1
		ORDER BY received_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var out []SavedWebhook
	for rows.Next() {
		var w SavedWebhook
		if err := rows.Scan(&w.ID, &w.UserID, &w.Source, &w.Payload, &w.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
