// Package threads persists the mapping between internal conversation ids and
// provider-side threads.
package threads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrThreadNotFound is returned when no record exists for a thread id.
var ErrThreadNotFound = errors.New("thread not found")

// Service manages thread records and their provider-thread mappings.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a thread store backed by the given pool.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "threads")),
	}
}

// Get returns the thread record for the given id.
func (s *Service) Get(ctx context.Context, threadID string) (Thread, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT thread_id, remote_thread_id, ticket_key, service_id, last_activity, created_at
		FROM threads WHERE thread_id = $1`, threadID)
	var t Thread
	err := row.Scan(&t.ThreadID, &t.RemoteThreadID, &t.TicketKey, &t.ServiceID, &t.LastActivity, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Thread{}, ErrThreadNotFound
		}
		return Thread{}, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

// SaveMapping upserts the provider-thread mapping for a thread id. An existing
// remote id is overwritten, never silently kept, so a re-created provider
// thread always wins.
func (s *Service) SaveMapping(ctx context.Context, threadID, remoteThreadID, serviceID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO threads (thread_id, remote_thread_id, service_id, last_activity)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (thread_id) DO UPDATE
		SET remote_thread_id = EXCLUDED.remote_thread_id,
		    service_id = EXCLUDED.service_id,
		    last_activity = now()`,
		threadID, remoteThreadID, serviceID)
	if err != nil {
		return fmt.Errorf("save thread mapping: %w", err)
	}
	return nil
}

// BindTicket associates a tracker issue key with the thread.
func (s *Service) BindTicket(ctx context.Context, threadID, ticketKey string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE threads SET ticket_key = $2, last_activity = now() WHERE thread_id = $1`,
		threadID, ticketKey)
	if err != nil {
		return fmt.Errorf("bind ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}
	return nil
}

// FindByTicket returns the thread bound to a ticket key, if any.
func (s *Service) FindByTicket(ctx context.Context, ticketKey string) (Thread, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT thread_id, remote_thread_id, ticket_key, service_id, last_activity, created_at
		FROM threads WHERE ticket_key = $1
		ORDER BY last_activity DESC LIMIT 1`, ticketKey)
	var t Thread
	err := row.Scan(&t.ThreadID, &t.RemoteThreadID, &t.TicketKey, &t.ServiceID, &t.LastActivity, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Thread{}, ErrThreadNotFound
		}
		return Thread{}, fmt.Errorf("find thread by ticket: %w", err)
	}
	return t, nil
}

// Touch bumps last_activity for the thread.
func (s *Service) Touch(ctx context.Context, threadID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE threads SET last_activity = now() WHERE thread_id = $1`, threadID)
	if err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}

// DeleteInactiveBefore removes threads whose last activity is older than
// cutoff and returns the number of rows removed. Used by the retention sweep.
func (s *Service) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM threads WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete inactive threads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AppendMessage writes one entry to the conversation log. The hot path keeps
// this disabled; history of normal turns lives in the provider.
func (s *Service) AppendMessage(ctx context.Context, threadID, role, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO thread_messages (thread_id, role, content) VALUES ($1, $2, $3)`,
		threadID, role, content)
	if err != nil {
		return fmt.Errorf("append thread message: %w", err)
	}
	return nil
}

// ListMessages returns the logged messages for a thread in creation order.
func (s *Service) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, role, content, created_at
		FROM thread_messages WHERE thread_id = $1 ORDER BY created_at`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
