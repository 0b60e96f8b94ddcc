package whatsapp

import "time"

// Mapping ties a normalized phone number to its open ticket and service.
type Mapping struct {
	Phone     string    `json:"phone"`
	IssueKey  string    `json:"issue_key"`
	ServiceID string    `json:"service_id"`
	UserID    string    `json:"user_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookPayload is the Cloud API webhook envelope.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is one inbound message; only type "text" is processed.
type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Inbound is a flattened text message extracted from a webhook payload.
type Inbound struct {
	Phone       string
	ProfileName string
	MessageID   string
	Body        string
}

// ExtractInbound flattens a webhook payload into the text messages worth
// processing. Non-text messages and empty bodies are dropped.
func ExtractInbound(payload WebhookPayload) []Inbound {
	var out []Inbound
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[NormalizePhone(c.WaID)] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" {
					continue
				}
				body := msg.Text.Body
				if body == "" {
					continue
				}
				phone := NormalizePhone(msg.From)
				if phone == "" {
					continue
				}
				out = append(out, Inbound{
					Phone:       phone,
					ProfileName: names[phone],
					MessageID:   msg.ID,
					Body:        body,
				})
			}
		}
	}
	return out
}
