package intake

import "time"

// Outcome is the terminal result of one webhook event. All outcomes are
// acknowledged with HTTP 200; the outcome string is the discriminator the
// caller sees.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkippedAI Outcome = "ai_comment"
	OutcomeThrottled Outcome = "throttled"
	OutcomeDisabled  Outcome = "ticket_disabled"
	OutcomeProcessed Outcome = "processed"
	OutcomeError     Outcome = "error"
)

// Result describes how an event was handled. Success reports that the
// event was received and acknowledged, not that a response was produced;
// it is true on every outcome so senders never retry.
type Result struct {
	Success          bool    `json:"success"`
	Outcome          Outcome `json:"outcome"`
	Detail           string  `json:"detail,omitempty"`
	RemainingSeconds int     `json:"remaining_seconds,omitempty"`
	ThreadID         string  `json:"thread_id,omitempty"`
	Response         string  `json:"response,omitempty"`
}

// Stats are process-lifetime counters; they reset only on operator action
// or process restart.
type Stats struct {
	Received      uint64    `json:"received"`
	Duplicates    uint64    `json:"duplicates_skipped"`
	AISkipped     uint64    `json:"ai_comments_skipped"`
	Responses     uint64    `json:"successful_responses"`
	Throttled     uint64    `json:"throttled_requests"`
	Errors        uint64    `json:"errors"`
	Since         time.Time `json:"since"`
	ProcessedKeys int       `json:"processed_keys"`
}
