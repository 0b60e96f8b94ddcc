// Package intake is the Jira comment state machine: it filters webhook
// events, suppresses duplicates and AI-authored comments, throttles
// responses per issue, and hands surviving messages to the conversation
// engine.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/movonte/deskbridge/internal/conversation"
	"github.com/movonte/deskbridge/internal/forwarder"
	"github.com/movonte/deskbridge/internal/jira"
	"github.com/movonte/deskbridge/internal/threads"
)

// Engine runs one conversation turn. *conversation.Service satisfies it.
type Engine interface {
	ProcessForService(ctx context.Context, req conversation.Request) (conversation.Response, error)
}

// TicketGateway posts replies back to the tracker. *jira.Client satisfies it.
type TicketGateway interface {
	AddComment(ctx context.Context, issueKey, text string) (string, error)
}

// ThreadLookup binds issues to conversation threads. *threads.Service
// satisfies it.
type ThreadLookup interface {
	FindByTicket(ctx context.Context, ticketKey string) (threads.Thread, error)
	BindTicket(ctx context.Context, threadID, ticketKey string) error
}

// ResponseForwarder fans processed turns out to a user-configured webhook.
type ResponseForwarder interface {
	ForwardResponse(ctx context.Context, userID, serviceID string, payload forwarder.Payload)
}

// Jira comment timestamps, e.g. "2024-05-03T10:15:32.000-0600".
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Service drives the per-event state machine.
type Service struct {
	guard     *Guard
	engine    Engine
	gateway   TicketGateway
	threads   ThreadLookup
	forwarder ResponseForwarder
	logger    *slog.Logger

	botAccountIDs    []string
	defaultServiceID string
	recencyWarning   time.Duration
}

// NewService wires the state machine. forwarder may be nil.
func NewService(log *slog.Logger, guard *Guard, engine Engine, gateway TicketGateway, threadLookup ThreadLookup, fwd ResponseForwarder, botAccountIDs []string, defaultServiceID string, recencyWarning time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if recencyWarning <= 0 {
		recencyWarning = 5 * time.Second
	}
	return &Service{
		guard:            guard,
		engine:           engine,
		gateway:          gateway,
		threads:          threadLookup,
		forwarder:        fwd,
		logger:           log.With(slog.String("service", "intake")),
		botAccountIDs:    botAccountIDs,
		defaultServiceID: defaultServiceID,
		recencyWarning:   recencyWarning,
	}
}

// Guard exposes the injected guard for the stats endpoints.
func (s *Service) Guard() *Guard { return s.guard }

// HandleCommentEvent runs one webhook event through the state machine.
// Every path returns a Result; an error is only reported alongside
// OutcomeError and never prevents the webhook acknowledgement.
func (s *Service) HandleCommentEvent(ctx context.Context, userID string, event jira.WebhookEvent) Result {
	s.guard.countReceived()

	if event.WebhookEvent != jira.EventCommentCreated {
		return Result{Success: true, Outcome: OutcomeIgnored, Detail: "event type " + event.WebhookEvent}
	}

	issueKey := event.Issue.Key
	comment := event.Comment

	key := fmt.Sprintf("%s_%s_%s", issueKey, comment.ID, comment.Created)
	if s.guard.Seen(key) {
		s.guard.countDuplicate()
		s.logger.Info("duplicate webhook event", slog.String("issue", issueKey), slog.String("comment_id", comment.ID))
		return Result{Success: true, Outcome: OutcomeDuplicate, Detail: "event already processed"}
	}

	if c := ClassifyComment(CommentMeta{
		DisplayName: comment.Author.DisplayName,
		Email:       comment.Author.EmailAddress,
		AccountID:   comment.Author.AccountID,
		Body:        comment.Body,
	}, s.botAccountIDs); c.IsAI {
		s.guard.countAISkipped()
		s.logger.Info("skipping ai-authored comment",
			slog.String("issue", issueKey),
			slog.String("reason", c.Reason))
		return Result{Success: true, Outcome: OutcomeSkippedAI, Detail: c.Reason}
	}

	if created, err := time.Parse(jiraTimeLayout, comment.Created); err == nil {
		if age := time.Since(created); age >= 0 && age < s.recencyWarning {
			// Very fresh comments right after our own reply are the loop
			// signature; warn but keep going.
			s.logger.Warn("comment created moments ago, possible feedback loop",
				slog.String("issue", issueKey),
				slog.Duration("age", age))
		}
	}

	if remaining, ok := s.guard.Reserve(issueKey); !ok {
		s.guard.countThrottled()
		seconds := int(remaining.Round(time.Second) / time.Second)
		s.logger.Info("throttled response for issue",
			slog.String("issue", issueKey),
			slog.Int("remaining_seconds", seconds))
		return Result{Success: true, Outcome: OutcomeThrottled, Detail: "response throttled", RemainingSeconds: seconds}
	}

	threadID, serviceID := s.resolveThread(ctx, issueKey)
	message := fmt.Sprintf("From %s on Jira issue %s: %s", comment.Author.DisplayName, issueKey, comment.Body)
	turnContext := map[string]any{
		"source":  "jira",
		"issue":   issueKey,
		"summary": event.Issue.Fields.Summary,
		"status":  event.Issue.Fields.Status.Name,
		"author":  comment.Author.DisplayName,
	}

	resp, err := s.engine.ProcessForService(ctx, conversation.Request{
		Message:   message,
		ServiceID: serviceID,
		UserID:    userID,
		ThreadID:  threadID,
		TicketKey: issueKey,
		Context:   turnContext,
	})
	if err != nil {
		if errors.Is(err, conversation.ErrTicketDisabled) {
			s.logger.Info("ticket disabled, skipping ai processing", slog.String("issue", issueKey))
			return Result{Success: true, Outcome: OutcomeDisabled, Detail: "ai processing disabled for ticket"}
		}
		s.guard.countError()
		s.logger.Error("conversation engine failed",
			slog.String("issue", issueKey),
			slog.Any("error", err))
		return Result{Success: true, Outcome: OutcomeError, Detail: err.Error()}
	}

	if resp.Response != "" {
		if _, err := s.gateway.AddComment(ctx, issueKey, resp.Response); err != nil {
			// The inbound event was processed; a failed post must not fail
			// the webhook acknowledgement.
			s.logger.Error("post response comment failed",
				slog.String("issue", issueKey),
				slog.Any("error", err))
		}
		s.guard.countResponse()
	}

	if err := s.threads.BindTicket(ctx, resp.ThreadID, issueKey); err != nil && !errors.Is(err, threads.ErrThreadNotFound) {
		s.logger.Warn("bind ticket failed", slog.String("issue", issueKey), slog.Any("error", err))
	}

	if s.forwarder != nil {
		s.forwarder.ForwardResponse(ctx, userID, serviceID, forwarder.Payload{
			IssueKey:      issueKey,
			Message:       comment.Body,
			Author:        comment.Author.DisplayName,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Source:        "jira",
			ThreadID:      resp.ThreadID,
			AssistantID:   resp.AssistantID,
			AssistantName: resp.AssistantName,
			Response:      resp.Response,
			Context:       turnContext,
		})
	}

	return Result{Success: true, Outcome: OutcomeProcessed, ThreadID: resp.ThreadID, Response: resp.Response}
}

// resolveThread reuses the thread already bound to the issue or derives a
// stable per-issue thread id for its first conversation turn.
func (s *Service) resolveThread(ctx context.Context, issueKey string) (threadID, serviceID string) {
	if t, err := s.threads.FindByTicket(ctx, issueKey); err == nil {
		return t.ThreadID, t.ServiceID
	}
	return "jira-" + issueKey, s.defaultServiceID
}
