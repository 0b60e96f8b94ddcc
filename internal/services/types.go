package services

import "time"

// ServiceConfig is one configured service: the assistant that answers for it,
// the tracker project it files tickets in, and the routing keywords.
// A row with an empty UserID belongs to the global registry.
type ServiceConfig struct {
	UserID        string    `json:"user_id,omitempty"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	AssistantID   string    `json:"assistant_id"`
	AssistantName string    `json:"assistant_name"`
	ProjectKey    string    `json:"project_key"`
	Keywords      []string  `json:"keywords,omitempty"`
	IsActive      bool      `json:"is_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Assistant identifies the resolved assistant for a service.
type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WebhookConfig governs forwarding of processed turns to an external URL.
type WebhookConfig struct {
	UserID          string    `json:"user_id,omitempty"`
	ServiceID       string    `json:"service_id,omitempty"`
	URL             string    `json:"url"`
	IsEnabled       bool      `json:"is_enabled"`
	FilterEnabled   bool      `json:"filter_enabled"`
	FilterCondition string    `json:"filter_condition,omitempty"`
	FilterValue     string    `json:"filter_value,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
