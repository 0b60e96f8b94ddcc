package jira

// Issue is the subset of a tracker issue the bridge reads.
type Issue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
	} `json:"fields"`
}

// Author is the comment author metadata consumed by the loop detector.
type Author struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Comment is one issue comment.
type Comment struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Created string `json:"created"`
	Author  Author `json:"author"`
}

// WebhookEvent is the inbound webhook payload for issue/comment events.
type WebhookEvent struct {
	WebhookEvent string `json:"webhookEvent"`
	Issue        struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	} `json:"issue"`
	Comment struct {
		ID      string `json:"id"`
		Body    string `json:"body"`
		Created string `json:"created"`
		Author  Author `json:"author"`
	} `json:"comment"`
}

// EventCommentCreated is the only webhook event type the intake processes.
const EventCommentCreated = "comment_created"
