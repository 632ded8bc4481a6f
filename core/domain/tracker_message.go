package domain

import (
	"net/mail"
	"strings"
	"time"
)

// MailMessage is the normalised view of one provider message.
type MailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	// Date is the raw Date header.
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// ParsedDate parses the Date header, falling back to fallback.
func (m *MailMessage) ParsedDate(fallback time.Time) time.Time {
	if m.Date == "" {
		return fallback
	}
	if t, err := mail.ParseDate(m.Date); err == nil {
		return t
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, m.Date); err == nil {
			return t
		}
	}
	return fallback
}

// IsLinkedIn reports whether the message came through LinkedIn.
func (m *MailMessage) IsLinkedIn() bool {
	return strings.Contains(strings.ToLower(m.From), "linkedin") ||
		strings.Contains(strings.ToLower(m.Subject), "linkedin")
}

// JobSource infers where the application came from.
func (m *MailMessage) JobSource() JobSource {
	if m.IsLinkedIn() {
		return JobSourceLinkedIn
	}
	return JobSourceOther
}
