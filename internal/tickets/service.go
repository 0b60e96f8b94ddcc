// Package tickets tracks tickets for which AI processing has been switched
// off by an operator.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotDisabled is returned when enabling a ticket that has no disable record.
var ErrNotDisabled = errors.New("ticket is not disabled")

// DisabledTicket is an operator-created suppression record. There is no
// automatic expiry; the record stays until explicitly removed.
type DisabledTicket struct {
	UserID     string    `json:"user_id,omitempty"`
	IssueKey   string    `json:"issue_key"`
	Reason     string    `json:"reason,omitempty"`
	DisabledBy string    `json:"disabled_by,omitempty"`
	DisabledAt time.Time `json:"disabled_at"`
}

// Service is the disabled-ticket store.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a disabled-ticket store backed by the given pool.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "tickets")),
	}
}

// Disable creates (or refreshes) the suppression record for an issue key.
func (s *Service) Disable(ctx context.Context, userID, issueKey, reason, disabledBy string) (DisabledTicket, error) {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return DisabledTicket{}, fmt.Errorf("issue key is required")
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO disabled_tickets (user_id, issue_key, reason, disabled_by, disabled_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, issue_key) DO UPDATE
		SET reason = EXCLUDED.reason,
		    disabled_by = EXCLUDED.disabled_by,
		    disabled_at = now()
		RETURNING user_id, issue_key, reason, disabled_by, disabled_at`,
		userID, issueKey, reason, disabledBy)
	var t DisabledTicket
	if err := row.Scan(&t.UserID, &t.IssueKey, &t.Reason, &t.DisabledBy, &t.DisabledAt); err != nil {
		return DisabledTicket{}, fmt.Errorf("disable ticket: %w", err)
	}
	return t, nil
}

// Enable removes the suppression record for an issue key.
func (s *Service) Enable(ctx context.Context, userID, issueKey string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM disabled_tickets WHERE user_id = $1 AND issue_key = $2`,
		userID, strings.TrimSpace(issueKey))
	if err != nil {
		return fmt.Errorf("enable ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDisabled
	}
	return nil
}

// IsDisabled reports whether the issue is suppressed for the user, checking
// both the user's own record and the global one.
func (s *Service) IsDisabled(ctx context.Context, userID, issueKey string) (bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT 1 FROM disabled_tickets
		WHERE issue_key = $2 AND user_id IN ('', $1) LIMIT 1`,
		userID, strings.TrimSpace(issueKey))
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check disabled ticket: %w", err)
	}
	return true, nil
}

// List returns all suppression records visible to the user.
func (s *Service) List(ctx context.Context, userID string) ([]DisabledTicket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, issue_key, reason, disabled_by, disabled_at
		FROM disabled_tickets WHERE user_id IN ('', $1)
		ORDER BY disabled_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list disabled tickets: %w", err)
	}
	defer rows.Close()

	var out []DisabledTicket
	for rows.Next() {
		var t DisabledTicket
		if err := rows.Scan(&t.UserID, &t.IssueKey, &t.Reason, &t.DisabledBy, &t.DisabledAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
