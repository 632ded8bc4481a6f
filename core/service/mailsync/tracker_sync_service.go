// Package mailsync runs a bounded batch of candidate messages through
// classification, extraction and reconciliation.
package mailsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/extraction"
	"tracker_server/core/service/reconcile"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"
)

// JobQuery is the server-side relevance filter for candidate messages.
const JobQuery = "in:inbox (application OR applied OR interview OR offer OR rejected OR hiring OR recruiter OR job OR role OR position OR linkedin OR indeed OR glassdoor)"

// IntentClassifier is satisfied by *classification.Classifier.
type IntentClassifier interface {
	Classify(subject, snippet string) domain.IntentTag
}

type Config struct {
	// DefaultMaxResults applies when a request leaves MaxResults at zero.
	DefaultMaxResults int
	MaxResultsLimit   int
	FetchConcurrency  int
	FetchTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultMaxResults: 50,
		MaxResultsLimit:   100,
		FetchConcurrency:  10,
		FetchTimeout:      15 * time.Second,
	}
}

type Service struct {
	provider    out.MailProvider
	classifier  IntentClassifier
	engine      *reconcile.Engine
	checkpoints out.CheckpointRepository
	cfg         Config
	now         func() time.Time
}

func NewService(
	provider out.MailProvider,
	classifier IntentClassifier,
	engine *reconcile.Engine,
	checkpoints out.CheckpointRepository,
	cfg Config,
) *Service {
	def := DefaultConfig()
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = def.DefaultMaxResults
	}
	if cfg.MaxResultsLimit <= 0 {
		cfg.MaxResultsLimit = def.MaxResultsLimit
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = def.FetchConcurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &Service{
		provider:    provider,
		classifier:  classifier,
		engine:      engine,
		checkpoints: checkpoints,
		cfg:         cfg,
		now:         time.Now,
	}
}

var _ in.SyncService = (*Service)(nil)

// errMessageFailed marks a per-message failure that must not abort the batch.
var errMessageFailed = errors.New("message processing failed")

type fetched struct {
	msg *domain.MailMessage
	err error
}

func (s *Service) RunSync(ctx context.Context, req *in.SyncRequest) (*in.SyncResult, error) {
	if req == nil || req.UserID == "" {
		return nil, apperr.AuthRequired("")
	}
	if !hasCredential(req.Credential) {
		return nil, apperr.AuthRequired("mail credential required")
	}

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = s.cfg.DefaultMaxResults
	}
	if maxResults < 1 || maxResults > s.cfg.MaxResultsLimit {
		return nil, apperr.InvalidInput("maxResults", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxResultsLimit))
	}

	startedAt := s.now()
	defer metrics.Since("sync.run", time.Now())
	log := logger.WithContext(ctx).WithField("user_id", req.UserID)

	since := req.Since
	if req.UseCheckpoint {
		cp, err := s.checkpoints.Get(ctx, req.UserID)
		if err != nil {
			return nil, apperr.StoreError("get checkpoint", err)
		}
		if cp != nil {
			last := cp.LastSyncDate
			since = &last
		}
	}

	refs, err := s.provider.ListCandidateMessages(ctx, req.Credential, out.CandidateQuery{
		Query: JobQuery,
		Since: since,
		Limit: maxResults,
	})
	if err != nil {
		if out.IsAuthFailure(err) {
			return nil, apperr.CredentialInvalid(err)
		}
		return nil, apperr.Wrap(err, apperr.CodeTransientFetch, "failed to list candidate messages", http.StatusBadGateway)
	}
	if len(refs) > maxResults {
		refs = refs[:maxResults]
	}
	log.Info("sync started: %d candidates", len(refs))

	messages, err := s.fetchAll(ctx, req.Credential, refs)
	if err != nil {
		return nil, err
	}

	var summary domain.SyncSummary
	for i, f := range messages {
		if f.err != nil {
			log.WithError(f.err).WithField("message_id", refs[i].ID).Warn("metadata fetch failed, counted as unknown")
			summary.Unknown++
			continue
		}

		intent, err := s.process(ctx, req.UserID, req.Credential, f.msg)
		if err != nil {
			if errors.Is(err, errMessageFailed) {
				log.WithError(err).WithField("message_id", f.msg.ID).Warn("message skipped, counted as unknown")
				summary.Unknown++
				continue
			}
			return nil, err
		}
		summary.Count(intent)
	}

	if err := s.checkpoints.Advance(ctx, &domain.SyncCheckpoint{
		UserID:          req.UserID,
		LastSyncDate:    startedAt,
		LastSyncSummary: summary,
	}); err != nil {
		return nil, apperr.StoreError("advance checkpoint", err)
	}

	log.WithDuration(time.Since(startedAt)).
		WithField("summary", summary).
		Info("sync completed: %d messages", len(refs))

	return &in.SyncResult{
		SyncedAt:   startedAt,
		Candidates: len(refs),
		Summary:    summary,
	}, nil
}

func (s *Service) Status(ctx context.Context, userID string) (*domain.SyncCheckpoint, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	cp, err := s.checkpoints.Get(ctx, userID)
	if err != nil {
		return nil, apperr.StoreError("get checkpoint", err)
	}
	return cp, nil
}

// fetchAll loads metadata concurrently, keeping results in ref order.
// Only an auth failure fails the whole call.
func (s *Service) fetchAll(ctx context.Context, token *oauth2.Token, refs []out.MessageRef) ([]fetched, error) {
	results := make([]fetched, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)

	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, s.cfg.FetchTimeout)
			defer cancel()

			msg, err := s.provider.FetchMetadata(fctx, token, ref)
			if err != nil {
				if out.IsAuthFailure(err) {
					return apperr.CredentialInvalid(err)
				}
				results[i] = fetched{err: apperr.TransientFetch(ref.ID, err)}
				return nil
			}
			if msg.ID == "" {
				msg.ID = ref.ID
			}
			if msg.ThreadID == "" {
				msg.ThreadID = ref.ThreadID
			}
			results[i] = fetched{msg: msg}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// process classifies, extracts and reconciles one message. Panics are
// turned into errMessageFailed; store errors pass through.
func (s *Service) process(ctx context.Context, userID string, token *oauth2.Token, msg *domain.MailMessage) (intent domain.IntentTag, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errMessageFailed, r)
		}
	}()

	intent = s.classifier.Classify(msg.Subject, msg.Snippet)

	company, role := domain.UnknownEntity(), domain.UnknownEntity()
	if intent.IsJobProducing() {
		company = extraction.ExtractCompany(msg)
		role = extraction.ExtractRoleFromMessage(msg)
		if role.IsUnknown() && msg.IsLinkedIn() {
			role = s.enrichRole(ctx, token, msg, role)
		}
	}

	if _, err := s.engine.Reconcile(ctx, &reconcile.Input{
		UserID:  userID,
		Message: msg,
		Intent:  intent,
		Company: company,
		Role:    role,
	}); err != nil {
		return intent, err
	}
	return intent, nil
}

// enrichRole makes one full-body fetch. Any failure keeps fallback.
func (s *Service) enrichRole(ctx context.Context, token *oauth2.Token, msg *domain.MailMessage, fallback domain.Entity) domain.Entity {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	body, err := s.provider.FetchFullBody(fctx, token, msg.ID)
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("message_id", msg.ID).Warn("body enrichment failed")
		return fallback
	}

	role := extraction.ExtractRole(msg.Subject, body)
	if role.IsUnknown() {
		return fallback
	}
	return role
}

func hasCredential(t *oauth2.Token) bool {
	return t != nil && (t.AccessToken != "" || t.RefreshToken != "")
}
