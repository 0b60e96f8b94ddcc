// Package conversation is the AI conversation engine: it resolves the
// assistant for a service, manages the provider-thread lifecycle, and turns
// inbound messages into cleaned replies.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/movonte/deskbridge/internal/openai"
	"github.com/movonte/deskbridge/internal/services"
	"github.com/movonte/deskbridge/internal/threads"
)

var (
	// ErrEmptyMessage is returned when a turn has no message text.
	ErrEmptyMessage = errors.New("message is required")
	// ErrTicketDisabled is returned when the bound ticket is suppressed; the
	// caller decides how to acknowledge it.
	ErrTicketDisabled = errors.New("ticket is disabled for AI processing")
	// ErrProviderUnavailable is the terminal failure after the fallback path
	// has also failed. No synthetic reply is fabricated.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
)

// Recent fallback history window per thread.
const recentTurnWindow = 10

// Service is the conversation engine.
type Service struct {
	provider Provider
	registry AssistantResolver
	store    ThreadStore
	disabled DisabledChecker
	logger   *slog.Logger

	fallbackModel string

	// Recent in-memory turns, keyed by internal thread id. Only the
	// fallback completion path reads this; authoritative history lives in
	// the provider thread.
	mu     sync.Mutex
	recent map[string][]openai.ChatMessage
}

// NewService creates the engine.
func NewService(log *slog.Logger, provider Provider, registry AssistantResolver, store ThreadStore, disabled DisabledChecker, fallbackModel string) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider:      provider,
		registry:      registry,
		store:         store,
		disabled:      disabled,
		logger:        log.With(slog.String("service", "conversation")),
		fallbackModel: fallbackModel,
		recent:        make(map[string][]openai.ChatMessage),
	}
}

// ProcessForService handles one inbound turn. Report trigger words divert the
// turn into summary generation on the same thread; everything else runs a
// normal assistant turn with the self-healing provider-thread resolution.
func (s *Service) ProcessForService(ctx context.Context, req Request) (Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Response{}, ErrEmptyMessage
	}

	assistant, err := s.registry.ResolveAssistant(ctx, req.UserID, req.ServiceID)
	if err != nil {
		return Response{}, err
	}

	if req.TicketKey != "" && s.disabled != nil {
		off, err := s.disabled.IsDisabled(ctx, req.UserID, req.TicketKey)
		if err != nil {
			s.logger.Warn("disabled-ticket check failed", slog.String("ticket", req.TicketKey), slog.Any("error", err))
		} else if off {
			return Response{}, ErrTicketDisabled
		}
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}

	if IsReportTrigger(message) {
		return s.generateReport(ctx, req, assistant, threadID)
	}
	return s.processTurn(ctx, req, assistant, threadID, message, false)
}

func (s *Service) processTurn(ctx context.Context, req Request, assistant services.Assistant, threadID, message string, isReport bool) (Response, error) {
	reply, err := s.runAssistantTurn(ctx, assistant.ID, threadID, req.ServiceID, message)
	if err != nil {
		s.logger.Warn("assistant turn failed, trying direct completion",
			slog.String("thread_id", threadID),
			slog.String("service_id", req.ServiceID),
			slog.Any("error", err))
		reply, err = s.fallbackCompletion(ctx, assistant, threadID, message)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	reply = CleanResponse(reply)
	s.recordTurn(threadID, message, reply)
	if err := s.store.Touch(ctx, threadID); err != nil {
		s.logger.Warn("touch thread failed", slog.String("thread_id", threadID), slog.Any("error", err))
	}

	return Response{
		Response:      reply,
		ThreadID:      threadID,
		AssistantID:   assistant.ID,
		AssistantName: assistant.Name,
		IsReport:      isReport,
	}, nil
}

// runAssistantTurn posts the message to the resolved provider thread, runs
// the assistant, and waits for completion.
func (s *Service) runAssistantTurn(ctx context.Context, assistantID, threadID, serviceID, message string) (string, error) {
	remoteID, err := s.resolveRemoteThread(ctx, threadID, serviceID)
	if err != nil {
		return "", err
	}

	if err := s.provider.AddMessage(ctx, remoteID, "user", message); err != nil {
		if !errors.Is(err, openai.ErrNotFound) {
			return "", err
		}
		// The provider no longer knows the thread. Re-create it and
		// overwrite the mapping; prior remote history is gone.
		s.logger.Warn("remote thread invalid, re-creating",
			slog.String("thread_id", threadID),
			slog.String("remote_thread_id", remoteID))
		remoteID, err = s.createRemoteThread(ctx, threadID, serviceID)
		if err != nil {
			return "", err
		}
		if err := s.provider.AddMessage(ctx, remoteID, "user", message); err != nil {
			return "", err
		}
	}

	run, err := s.provider.CreateRun(ctx, remoteID, assistantID)
	if err != nil {
		return "", err
	}
	run, err = s.provider.WaitForRun(ctx, remoteID, run.ID)
	if err != nil {
		return "", err
	}
	if run.Status != openai.RunStatusCompleted {
		detail := run.Status
		if run.LastError != nil {
			detail = fmt.Sprintf("%s (%s: %s)", run.Status, run.LastError.Code, run.LastError.Message)
		}
		return "", fmt.Errorf("run finished with status %s", detail)
	}

	return s.provider.LatestAssistantMessage(ctx, remoteID)
}

// resolveRemoteThread returns the provider thread for an internal thread id,
// creating and persisting one when no mapping exists.
func (s *Service) resolveRemoteThread(ctx context.Context, threadID, serviceID string) (string, error) {
	record, err := s.store.Get(ctx, threadID)
	if err == nil && record.RemoteThreadID != "" {
		return record.RemoteThreadID, nil
	}
	if err != nil && !errors.Is(err, threads.ErrThreadNotFound) {
		return "", err
	}
	return s.createRemoteThread(ctx, threadID, serviceID)
}

func (s *Service) createRemoteThread(ctx context.Context, threadID, serviceID string) (string, error) {
	remoteID, err := s.provider.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	if err := s.store.SaveMapping(ctx, threadID, remoteID, serviceID); err != nil {
		return "", err
	}
	return remoteID, nil
}

// generateReport replays the remote history through the assistant with a
// summary prompt. The original thread id is kept so the conversation does
// not fragment.
func (s *Service) generateReport(ctx context.Context, req Request, assistant services.Assistant, threadID string) (Response, error) {
	transcript := s.loadTranscript(ctx, threadID)
	prompt := reportPrompt(transcript)
	return s.processTurn(ctx, req, assistant, threadID, prompt, true)
}

func (s *Service) loadTranscript(ctx context.Context, threadID string) string {
	record, err := s.store.Get(ctx, threadID)
	if err != nil || record.RemoteThreadID == "" {
		return ""
	}
	msgs, err := s.provider.ListMessages(ctx, record.RemoteThreadID, 100)
	if err != nil {
		s.logger.Warn("load transcript failed", slog.String("thread_id", threadID), slog.Any("error", err))
		return ""
	}
	// Messages arrive most recent first; rebuild chronological order.
	var b strings.Builder
	for i := len(msgs) - 1; i >= 0; i-- {
		text := strings.TrimSpace(msgs[i].Text())
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msgs[i].Role, text)
	}
	return b.String()
}

func reportPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("Generate a structured summary report of this conversation. ")
	b.WriteString("Include: main topics discussed, questions raised, answers given, and any pending items. ")
	b.WriteString("Respond in the language the conversation was held in.")
	if transcript != "" {
		b.WriteString("\n\nConversation history:\n")
		b.WriteString(transcript)
	}
	return b.String()
}

// fallbackCompletion is the simpler direct path used when the assistant run
// fails: the assistant's instructions become the system prompt and the
// bounded in-memory history provides context.
func (s *Service) fallbackCompletion(ctx context.Context, assistant services.Assistant, threadID, message string) (string, error) {
	model := s.fallbackModel
	var system string
	if info, err := s.provider.GetAssistant(ctx, assistant.ID); err == nil {
		if strings.TrimSpace(info.Instructions) != "" {
			system = info.Instructions
		}
		if strings.TrimSpace(info.Model) != "" {
			model = info.Model
		}
	}

	msgs := make([]openai.ChatMessage, 0, recentTurnWindow+2)
	if system != "" {
		msgs = append(msgs, openai.ChatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, s.recentTurns(threadID)...)
	msgs = append(msgs, openai.ChatMessage{Role: "user", Content: message})

	return s.provider.ChatCompletion(ctx, model, msgs)
}

func (s *Service) recordTurn(threadID, userMessage, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.recent[threadID],
		openai.ChatMessage{Role: "user", Content: userMessage},
		openai.ChatMessage{Role: "assistant", Content: reply})
	if len(history) > recentTurnWindow {
		history = history[len(history)-recentTurnWindow:]
	}
	s.recent[threadID] = history
}

func (s *Service) recentTurns(threadID string) []openai.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.recent[threadID]
	out := make([]openai.ChatMessage, len(history))
	copy(out, history)
	return out
}
