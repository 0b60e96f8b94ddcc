package conversation

import (
	"context"

	"github.com/movonte/deskbridge/internal/openai"
	"github.com/movonte/deskbridge/internal/services"
	"github.com/movonte/deskbridge/internal/threads"
)

// Request is one inbound turn for a service.
type Request struct {
	Message   string         `json:"message"`
	ServiceID string         `json:"service_id"`
	UserID    string         `json:"user_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	TicketKey string         `json:"ticket_key,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Response is the generated reply plus the identifiers the caller needs to
// continue the conversation.
type Response struct {
	Response      string `json:"response"`
	ThreadID      string `json:"thread_id"`
	AssistantID   string `json:"assistant_id"`
	AssistantName string `json:"assistant_name"`
	IsReport      bool   `json:"is_report,omitempty"`
}

// Provider is the subset of the AI provider the engine uses. *openai.Client
// satisfies it; tests swap in a recording double.
type Provider interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, role, content string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (openai.Run, error)
	WaitForRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]openai.ThreadMessage, error)
	LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
	GetAssistant(ctx context.Context, assistantID string) (openai.Assistant, error)
	ChatCompletion(ctx context.Context, model string, messages []openai.ChatMessage) (string, error)
}

// AssistantResolver resolves the assistant answering for a service.
type AssistantResolver interface {
	ResolveAssistant(ctx context.Context, userID, serviceID string) (services.Assistant, error)
}

// ThreadStore persists the internal-thread to provider-thread mapping.
// *threads.Service satisfies it.
type ThreadStore interface {
	Get(ctx context.Context, threadID string) (threads.Thread, error)
	SaveMapping(ctx context.Context, threadID, remoteThreadID, serviceID string) error
	Touch(ctx context.Context, threadID string) error
}

// DisabledChecker reports whether a ticket is suppressed for a user.
type DisabledChecker interface {
	IsDisabled(ctx context.Context, userID, issueKey string) (bool, error)
}
