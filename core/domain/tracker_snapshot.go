package domain

import (
	"strings"
	"time"
)

// =============================================================================
// EmailSnapshot - review queue entry
// =============================================================================

type EmailSnapshot struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	EmailMessageID string    `json:"email_message_id"`
	EmailThreadID  string    `json:"email_thread_id"`
	Subject        string    `json:"subject"`
	From           string    `json:"from"`
	Snippet        string    `json:"snippet"`
	EmailDate      time.Time `json:"email_date"`
	Intent         IntentTag `json:"intent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SanitizeText collapses runs of whitespace and trims.
func SanitizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Sanitize normalises the free-text fields in place.
func (s *EmailSnapshot) Sanitize() {
	s.Subject = SanitizeText(s.Subject)
	s.From = SanitizeText(s.From)
	s.Snippet = SanitizeText(s.Snippet)
}

// Preview returns a sanitized copy with the snippet cut to limit runes.
func (s EmailSnapshot) Preview(limit int) EmailSnapshot {
	s.Sanitize()
	if limit > 0 {
		s.Snippet = Truncate(s.Snippet, limit)
	}
	return s
}

// Truncate cuts s to limit runes and appends "..." when it was longer.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
