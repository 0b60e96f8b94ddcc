package threads

import "time"

// Thread maps an opaque conversation id to the provider-side thread, the
// bound ticket, and the owning service.
type Thread struct {
	ThreadID       string    `json:"thread_id"`
	RemoteThreadID string    `json:"remote_thread_id"`
	TicketKey      string    `json:"ticket_key,omitempty"`
	ServiceID      string    `json:"service_id"`
	LastActivity   time.Time `json:"last_activity"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is one entry of the optional append-only conversation log.
type Message struct {
	ID        int64     `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
