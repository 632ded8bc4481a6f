// Package provider implements mail and identity providers on top of Google APIs.
package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/httputil"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"
)

const providerName = "gmail"

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailAdapter implements out.MailProvider with read-only Gmail access.
type GmailAdapter struct {
	cb       *gobreaker.CircuitBreaker
	endpoint string
	client   *http.Client
	// base carries the connection pool under the per-user token transport.
	base *http.Client
}

// GmailOption customizes the adapter.
type GmailOption func(*GmailAdapter)

// WithEndpoint points the adapter at a different Gmail API base URL.
func WithEndpoint(endpoint string) GmailOption {
	return func(a *GmailAdapter) { a.endpoint = endpoint }
}

// WithHTTPClient replaces the token-bearing client. The caller is then
// responsible for authorization.
func WithHTTPClient(c *http.Client) GmailOption {
	return func(a *GmailAdapter) { a.client = c }
}

// NewGmailAdapter creates a new Gmail adapter.
func NewGmailAdapter(opts ...GmailOption) *GmailAdapter {
	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithField("breaker", name).Warn("state changed from %s to %s", from.String(), to.String())
		},
	}

	a := &GmailAdapter{
		cb:   gobreaker.NewCircuitBreaker(cbSettings),
		base: httputil.NewClient(httputil.GoogleAPIConfig()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *GmailAdapter) ListCandidateMessages(ctx context.Context, token *oauth2.Token, q out.CandidateQuery) ([]out.MessageRef, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 50
	}

	req := svc.Users.Messages.List("me").MaxResults(limit)
	if query := BuildQuery(q.Query, q.Since); query != "" {
		req = req.Q(query)
	}

	var resp *gmail.ListMessagesResponse
	err = a.executeWithCircuitBreaker(ctx, "list", func() error {
		var callErr error
		resp, callErr = req.Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, wrapError(err, "failed to list messages")
	}

	refs := make([]out.MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.Id == "" {
			continue
		}
		refs = append(refs, out.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

func (a *GmailAdapter) FetchMetadata(ctx context.Context, token *oauth2.Token, ref out.MessageRef) (*domain.MailMessage, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = a.executeWithCircuitBreaker(ctx, "metadata", func() error {
		var callErr error
		msg, callErr = svc.Users.Messages.Get("me", ref.ID).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		return nil, wrapError(err, "failed to fetch message metadata")
	}

	return convertMetadata(msg, ref), nil
}

func (a *GmailAdapter) FetchFullBody(ctx context.Context, token *oauth2.Token, messageID string) (string, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return "", err
	}

	var msg *gmail.Message
	err = a.executeWithCircuitBreaker(ctx, "full", func() error {
		var callErr error
		msg, callErr = svc.Users.Messages.Get("me", messageID).
			Format("full").
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		return "", wrapError(err, "failed to fetch message body")
	}

	return ExtractBodyText(msg.Payload), nil
}

// BuildQuery appends Gmail's after: operator when a lower bound is set.
func BuildQuery(query string, since *time.Time) string {
	query = strings.TrimSpace(query)
	if since == nil || since.IsZero() {
		return query
	}
	after := "after:" + since.UTC().Format("2006/01/02")
	if query == "" {
		return after
	}
	return query + " " + after
}

func convertMetadata(msg *gmail.Message, ref out.MessageRef) *domain.MailMessage {
	m := &domain.MailMessage{
		ID:       ref.ID,
		ThreadID: ref.ThreadID,
	}
	if msg == nil {
		return m
	}
	if msg.Id != "" {
		m.ID = msg.Id
	}
	if msg.ThreadId != "" {
		m.ThreadID = msg.ThreadId
	}
	m.Snippet = msg.Snippet
	if msg.Payload != nil {
		m.Subject = getHeader(msg.Payload.Headers, "Subject")
		m.From = getHeader(msg.Payload.Headers, "From")
		m.Date = getHeader(msg.Payload.Headers, "Date")
	}
	return m
}

func (a *GmailAdapter) getService(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	if a.client == nil && (token == nil || token.AccessToken == "") {
		return nil, out.NewProviderError(providerName, out.ProviderErrAuth, "missing credential", nil, false)
	}

	opts := make([]option.ClientOption, 0, 2)
	if a.client != nil {
		opts = append(opts, option.WithHTTPClient(a.client))
	} else {
		baseCtx := context.WithValue(ctx, oauth2.HTTPClient, a.base)
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(token))))
	}
	if a.endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, out.NewProviderError(providerName, out.ProviderErrNetwork, "failed to create gmail service", err, true)
	}
	return svc, nil
}

// executeWithCircuitBreaker wraps an API call with circuit breaker protection.
// Client errors are passed through without counting against the breaker.
func (a *GmailAdapter) executeWithCircuitBreaker(ctx context.Context, operation string, fn func() error) error {
	defer metrics.Since("gmail."+operation, time.Now())

	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}

	if err != nil {
		logger.WithContext(ctx).WithError(err).
			WithField("operation", operation).
			WithField("breaker_state", a.cb.State().String()).
			Warn("gmail call failed")
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// IsCircuitOpen reports whether calls are currently failing fast.
func (a *GmailAdapter) IsCircuitOpen() bool {
	return a.cb.State() == gobreaker.StateOpen
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	var pe *out.ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out.NewProviderError(providerName, out.ProviderErrServer, "gmail temporarily unavailable", err, true)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401:
			return out.NewProviderError(providerName, out.ProviderErrTokenExpired, "token expired", err, false)
		case 403:
			if isRateLimitReason(apiErr) {
				return out.NewProviderError(providerName, out.ProviderErrRateLimit, "rate limit exceeded", err, true)
			}
			return out.NewProviderError(providerName, out.ProviderErrAuth, "access denied", err, false)
		case 404:
			return out.NewProviderError(providerName, out.ProviderErrNotFound, "not found", err, false)
		case 429:
			return out.NewProviderError(providerName, out.ProviderErrRateLimit, "too many requests", err, true)
		case 400:
			return out.NewProviderError(providerName, out.ProviderErrInvalidInput, "invalid request", err, false)
		case 500, 502, 503, 504:
			return out.NewProviderError(providerName, out.ProviderErrServer, "server error", err, true)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return out.NewProviderError(providerName, out.ProviderErrNetwork, "request timed out", err, true)
	}

	return out.NewProviderError(providerName, out.ProviderErrNetwork, defaultMsg, err, true)
}

func isRateLimitReason(apiErr *googleapi.Error) bool {
	if strings.Contains(strings.ToLower(apiErr.Message), "rate limit") {
		return true
	}
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

var _ out.MailProvider = (*GmailAdapter)(nil)
