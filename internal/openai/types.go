package openai

// Run statuses reported by the Assistants API.
const (
	RunStatusQueued         = "queued"
	RunStatusInProgress     = "in_progress"
	RunStatusRequiresAction = "requires_action"
	RunStatusCompleted      = "completed"
	RunStatusFailed         = "failed"
	RunStatusCancelled      = "cancelled"
	RunStatusExpired        = "expired"
)

// Run is a single assistant run against a thread.
type Run struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

// Terminal reports whether the run has reached a final state.
func (r Run) Terminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	}
	return false
}

// Assistant is the provider-side assistant record.
type Assistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

// ThreadMessage is one message of a provider thread.
type ThreadMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

// Text returns the concatenated text parts of the message.
func (m ThreadMessage) Text() string {
	out := ""
	for _, part := range m.Content {
		if part.Type == "text" {
			out += part.Text.Value
		}
	}
	return out
}

// ChatMessage is one turn of the direct chat-completions fallback.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
