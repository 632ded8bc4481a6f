// Package review resolves parked snapshots with a user-chosen intent.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/extraction"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
)

type Service struct {
	jobs      out.JobRepository
	snapshots out.SnapshotRepository
	events    out.EventRepository
	now       func() time.Time
}

func NewService(jobs out.JobRepository, snapshots out.SnapshotRepository, events out.EventRepository) *Service {
	return &Service{
		jobs:      jobs,
		snapshots: snapshots,
		events:    events,
		now:       time.Now,
	}
}

var _ in.ReviewService = (*Service)(nil)

func (s *Service) ListUnknown(ctx context.Context, userID string) ([]*domain.EmailSnapshot, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	snaps, err := s.snapshots.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.StoreError("list snapshots", err)
	}
	return snaps, nil
}

// Confirm applies the user's decision. User decisions always win over
// automated state, including a previous soft delete of the thread.
func (s *Service) Confirm(ctx context.Context, userID, snapshotID, finalIntent string) (*in.ConfirmResult, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	intent, ok := domain.ParseFinalIntent(finalIntent)
	if !ok {
		return nil, apperr.InvalidInput("finalIntent", "must be one of APPLIED, INTERVIEW, OFFER, REJECTED, IGNORE")
	}
	if snapshotID == "" {
		return nil, apperr.InvalidInput("snapshotId", "required")
	}

	snap, err := s.snapshots.GetByID(ctx, userID, snapshotID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("snapshot")
		}
		return nil, apperr.StoreError("get snapshot", err)
	}

	result := &in.ConfirmResult{SnapshotID: snap.ID, FinalIntent: intent}

	if intent == domain.IntentIgnore {
		if err := s.snapshots.DeleteByID(ctx, userID, snap.ID); err != nil && !errors.Is(err, out.ErrNotFound) {
			return nil, apperr.StoreError("delete snapshot", err)
		}
		return result, nil
	}

	status, _ := intent.Status()
	msg := &domain.MailMessage{
		ID:       snap.EmailMessageID,
		ThreadID: snap.EmailThreadID,
		Subject:  snap.Subject,
		From:     snap.From,
		Snippet:  snap.Snippet,
	}
	company := extraction.ExtractCompany(msg)
	role := extraction.ExtractRoleFromMessage(msg)

	var existing *domain.JobApplication
	if snap.EmailThreadID != "" {
		existing, err = s.jobs.FindByThread(ctx, userID, snap.EmailThreadID, true)
		if err != nil {
			return nil, apperr.StoreError("find job by thread", err)
		}
	}

	var job *domain.JobApplication
	if existing == nil {
		job, err = s.create(ctx, userID, snap, msg, status, company, role)
	} else {
		job, err = s.force(ctx, userID, existing, status, company, role)
	}
	if err != nil {
		return nil, err
	}
	result.JobID = job.ID

	// The snapshot stays for the thread preview; only its text is cleaned.
	if err := s.snapshots.UpdateText(ctx, userID, snap.ID,
		domain.SanitizeText(snap.Subject),
		domain.SanitizeText(snap.From),
		domain.SanitizeText(snap.Snippet),
	); err != nil && !errors.Is(err, out.ErrNotFound) {
		return nil, apperr.StoreError("update snapshot", err)
	}

	s.record(ctx, userID, job.ID, snap, intent, status)
	return result, nil
}

func (s *Service) create(ctx context.Context, userID string, snap *domain.EmailSnapshot, msg *domain.MailMessage, status domain.JobStatus, company, role domain.Entity) (*domain.JobApplication, error) {
	now := s.now()
	applied := snap.EmailDate
	if applied.IsZero() {
		applied = now
	}

	job := &domain.JobApplication{
		ID:            uuid.NewString(),
		UserID:        userID,
		Company:       company,
		Role:          role,
		Source:        msg.JobSource(),
		AppliedDate:   applied,
		CurrentStatus: status,
		StatusSource:  domain.StatusSourceUser,
		EmailThreadID: snap.EmailThreadID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperr.StoreError("create job", err)
	}
	return job, nil
}

// force sets the status unconditionally and restores a soft-deleted job.
func (s *Service) force(ctx context.Context, userID string, job *domain.JobApplication, status domain.JobStatus, company, role domain.Entity) (*domain.JobApplication, error) {
	src := domain.StatusSourceUser
	patch := &domain.JobPatch{
		CurrentStatus:  &status,
		StatusSource:   &src,
		ClearDeletedAt: job.IsDeleted(),
	}
	if c, changed := domain.UpgradeUnknown(job.Company, company); changed {
		patch.Company = &c
	}
	if r, changed := domain.UpgradeUnknown(job.Role, role); changed {
		patch.Role = &r
	}

	updated, err := s.jobs.Update(ctx, userID, job.ID, patch)
	if err != nil {
		return nil, apperr.StoreError("update job", err)
	}
	return updated, nil
}

func (s *Service) record(ctx context.Context, userID, jobID string, snap *domain.EmailSnapshot, intent domain.IntentTag, status domain.JobStatus) {
	if s.events == nil {
		return
	}
	ev := &domain.ApplicationEvent{
		ID:               uuid.NewString(),
		UserID:           userID,
		JobApplicationID: jobID,
		Type:             status,
		Source:           domain.EventSourceManual,
		EmailThreadID:    snap.EmailThreadID,
		EmailMessageID:   snap.EmailMessageID,
		DetectedIntent:   snap.Intent,
		FinalIntent:      intent,
		CreatedAt:        s.now(),
	}
	if err := s.events.Record(ctx, ev); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Warn("failed to record application event")
	}
}
