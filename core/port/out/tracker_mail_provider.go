// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"tracker_server/core/domain"
)

// =============================================================================
// Mail Provider Port (Gmail)
// =============================================================================

// MessageRef identifies a candidate message returned by a listing call.
type MessageRef struct {
	ID       string
	ThreadID string
}

// CandidateQuery bounds a listing call.
type CandidateQuery struct {
	// Query is the provider search expression.
	Query string
	// Since restricts results to messages received on or after this date.
	Since *time.Time
	Limit int
}

// MailProvider is the read-only view of a user's mailbox the sync needs.
type MailProvider interface {
	// ListCandidateMessages returns refs in provider order.
	ListCandidateMessages(ctx context.Context, token *oauth2.Token, q CandidateQuery) ([]MessageRef, error)

	// FetchMetadata loads subject, sender, date and snippet only.
	FetchMetadata(ctx context.Context, token *oauth2.Token, ref MessageRef) (*domain.MailMessage, error)

	// FetchFullBody returns the decoded plain text of the message,
	// HTML parts stripped to text.
	FetchFullBody(ctx context.Context, token *oauth2.Token, messageID string) (string, error)
}

// =============================================================================
// Provider Error
// =============================================================================

// ProviderErrorCode represents error codes.
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrTokenExpired ProviderErrorCode = "token_expired"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrNotFound     ProviderErrorCode = "not_found"
	ProviderErrNetwork      ProviderErrorCode = "network_error"
	ProviderErrServer       ProviderErrorCode = "server_error"
	ProviderErrInvalidInput ProviderErrorCode = "invalid_input"
)

// ProviderError represents a provider error.
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}

// IsAuthFailure reports whether err means the credential was rejected.
func IsAuthFailure(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == ProviderErrAuth || pe.Code == ProviderErrTokenExpired
}
