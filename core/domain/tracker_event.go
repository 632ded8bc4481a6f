package domain

import "time"

// =============================================================================
// ApplicationEvent - audit trail of status decisions
// =============================================================================

type EventSource string

const (
	EventSourceEmail  EventSource = "email"
	EventSourceManual EventSource = "manual"
)

type ApplicationEvent struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	JobApplicationID string      `json:"job_application_id"`
	Type             JobStatus   `json:"type"`
	Source           EventSource `json:"source"`
	EmailThreadID    string      `json:"email_thread_id,omitempty"`
	EmailMessageID   string      `json:"email_message_id,omitempty"`
	DetectedIntent   IntentTag   `json:"detected_intent,omitempty"`
	FinalIntent      IntentTag   `json:"final_intent,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}
