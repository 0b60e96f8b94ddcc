// Package services is the registry of configured services: global rows plus
// per-user overrides, each binding a service id to an assistant, a tracker
// project, routing keywords, and an optional forwarding webhook.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrServiceNotFound is returned when no global or per-user row exists.
	ErrServiceNotFound = errors.New("service not found")
	// ErrServiceNotConfigured is returned when a service exists but cannot
	// answer: it is inactive or has no assistant id.
	ErrServiceNotConfigured = errors.New("service not configured")
)

// Service is the registry store.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a service registry backed by the given pool.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "registry")),
	}
}

const serviceColumns = `user_id, service_id, service_name, assistant_id, assistant_name, project_key, keywords, is_active, updated_at`

func scanService(row pgx.Row) (ServiceConfig, error) {
	var c ServiceConfig
	err := row.Scan(&c.UserID, &c.ServiceID, &c.ServiceName, &c.AssistantID,
		&c.AssistantName, &c.ProjectKey, &c.Keywords, &c.IsActive, &c.UpdatedAt)
	return c, err
}

// Upsert inserts or replaces a service configuration.
func (s *Service) Upsert(ctx context.Context, cfg ServiceConfig) (ServiceConfig, error) {
	cfg.ServiceID = strings.TrimSpace(cfg.ServiceID)
	if cfg.ServiceID == "" {
		return ServiceConfig{}, fmt.Errorf("service id is required")
	}
	if cfg.Keywords == nil {
		cfg.Keywords = []string{}
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO service_configs (user_id, service_id, service_name, assistant_id, assistant_name, project_key, keywords, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id, service_id) DO UPDATE
		SET service_name = EXCLUDED.service_name,
		    assistant_id = EXCLUDED.assistant_id,
		    assistant_name = EXCLUDED.assistant_name,
		    project_key = EXCLUDED.project_key,
		    keywords = EXCLUDED.keywords,
		    is_active = EXCLUDED.is_active,
		    updated_at = now()
		RETURNING `+serviceColumns,
		cfg.UserID, cfg.ServiceID, cfg.ServiceName, cfg.AssistantID,
		cfg.AssistantName, cfg.ProjectKey, cfg.Keywords, cfg.IsActive)
	saved, err := scanService(row)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("upsert service: %w", err)
	}
	return saved, nil
}

// Get returns the configuration for (userID, serviceID), falling back to the
// global row when the user has no override.
func (s *Service) Get(ctx context.Context, userID, serviceID string) (ServiceConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+` FROM service_configs
		WHERE service_id = $2 AND user_id IN ('', $1)
		ORDER BY user_id DESC LIMIT 1`, userID, serviceID)
	cfg, err := scanService(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceConfig{}, ErrServiceNotFound
		}
		return ServiceConfig{}, fmt.Errorf("get service: %w", err)
	}
	return cfg, nil
}

// List returns all services visible to a user: the user's own rows plus
// global rows the user has not overridden, in stable service-name order.
func (s *Service) List(ctx context.Context, userID string) ([]ServiceConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (service_id) `+serviceColumns+`
		FROM service_configs
		WHERE user_id IN ('', $1)
		ORDER BY service_id, user_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var configs []ServiceConfig
	for rows.Next() {
		cfg, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// ListActive returns the user's active services in stable service-name order.
func (s *Service) ListActive(ctx context.Context, userID string) ([]ServiceConfig, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]ServiceConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.IsActive {
			active = append(active, cfg)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return strings.ToLower(active[i].ServiceName) < strings.ToLower(active[j].ServiceName)
	})
	return active, nil
}

// SetActive toggles the active flag on a service row.
func (s *Service) SetActive(ctx context.Context, userID, serviceID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_configs SET is_active = $3, updated_at = now()
		WHERE user_id = $1 AND service_id = $2`, userID, serviceID, active)
	if err != nil {
		return fmt.Errorf("set service active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// Delete removes a service row.
func (s *Service) Delete(ctx context.Context, userID, serviceID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM service_configs WHERE user_id = $1 AND service_id = $2`, userID, serviceID)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// ResolveAssistant returns the assistant for (userID, serviceID). Inactive
// services and services without an assistant id yield ErrServiceNotConfigured
// even when a row exists.
func (s *Service) ResolveAssistant(ctx context.Context, userID, serviceID string) (Assistant, error) {
	cfg, err := s.Get(ctx, userID, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return Assistant{}, ErrServiceNotConfigured
		}
		return Assistant{}, err
	}
	if !cfg.IsActive || strings.TrimSpace(cfg.AssistantID) == "" {
		return Assistant{}, ErrServiceNotConfigured
	}
	name := cfg.AssistantName
	if name == "" {
		name = cfg.ServiceName
	}
	return Assistant{ID: cfg.AssistantID, Name: name}, nil
}

// --- webhook configs ---

// GetWebhookConfig returns the forwarding config for (userID, serviceID),
// falling back to the user's service-independent row.
func (s *Service) GetWebhookConfig(ctx context.Context, userID, serviceID string) (WebhookConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, service_id, url, is_enabled, filter_enabled, filter_condition, filter_value, updated_at
		FROM webhook_configs
		WHERE user_id = $1 AND service_id IN ('', $2)
		ORDER BY service_id DESC LIMIT 1`, userID, serviceID)
	var cfg WebhookConfig
	err := row.Scan(&cfg.UserID, &cfg.ServiceID, &cfg.URL, &cfg.IsEnabled,
		&cfg.FilterEnabled, &cfg.FilterCondition, &cfg.FilterValue, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WebhookConfig{}, nil
		}
		return WebhookConfig{}, fmt.Errorf("get webhook config: %w", err)
	}
	return cfg, nil
}

// UpsertWebhookConfig inserts or replaces a forwarding config.
func (s *Service) UpsertWebhookConfig(ctx context.Context, cfg WebhookConfig) (WebhookConfig, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_configs (user_id, service_id, url, is_enabled, filter_enabled, filter_condition, filter_value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id, service_id) DO UPDATE
		SET url = EXCLUDED.url,
		    is_enabled = EXCLUDED.is_enabled,
		    filter_enabled = EXCLUDED.filter_enabled,
		    filter_condition = EXCLUDED.filter_condition,
		    filter_value = EXCLUDED.filter_value,
		    updated_at = now()
		RETURNING user_id, service_id, url, is_enabled, filter_enabled, filter_condition, filter_value, updated_at`,
		cfg.UserID, cfg.ServiceID, cfg.URL, cfg.IsEnabled, cfg.FilterEnabled,
		cfg.FilterCondition, cfg.FilterValue)
	var saved WebhookConfig
	err := row.Scan(&saved.UserID, &saved.ServiceID, &saved.URL, &saved.IsEnabled,
		&saved.FilterEnabled, &saved.FilterCondition, &saved.FilterValue, &saved.UpdatedAt)
	if err != nil {
		return WebhookConfig{}, fmt.Errorf("upsert webhook config: %w", err)
	}
	return saved, nil
}
