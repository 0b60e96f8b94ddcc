package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMappingNotFound means the phone number has no open ticket.
var ErrMappingNotFound = errors.New("whatsapp mapping not found")

// Store persists phone-to-ticket mappings.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, logger: log.With(slog.String("service", "whatsapp_store"))}
}

// Get looks up the mapping for a normalized phone number.
func (s *Store) Get(ctx context.Context, phone string) (Mapping, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT phone, issue_key, service_id, user_id, updated_at
		FROM whatsapp_mappings
		WHERE phone = $1`, phone)
	var m Mapping
	err := row.Scan(&m.Phone, &m.IssueKey, &m.ServiceID, &m.UserID, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mapping{}, ErrMappingNotFound
		}
		return Mapping{}, fmt.Errorf("get mapping: %w", err)
	}
	return m, nil
}

// Set upserts the mapping for a phone. Last write wins.
func (s *Store) Set(ctx context.Context, m Mapping) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO whatsapp_mappings (phone, issue_key, service_id, user_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (phone) DO UPDATE
		SET issue_key = EXCLUDED.issue_key,
		    service_id = EXCLUDED.service_id,
		    user_id = EXCLUDED.user_id,
		    updated_at = now()`,
		m.Phone, m.IssueKey, m.ServiceID, m.UserID)
	if err != nil {
		return fmt.Errorf("set mapping: %w", err)
	}
	return nil
}

// Delete removes the mapping for a phone, if any.
func (s *Store) Delete(ctx context.Context, phone string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM whatsapp_mappings WHERE phone = $1`, phone)
	if err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	return nil
}

// List returns all mappings for a user.
func (s *Store) List(ctx context.Context, userID string) ([]Mapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT phone, issue_key, service_id, user_id, updated_at
		FROM whatsapp_mappings
		WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.Phone, &m.IssueKey, &m.ServiceID, &m.UserID, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
