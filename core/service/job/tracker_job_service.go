// Package job serves the user-facing job board: manual entries, edits,
// soft deletes, stats, timelines and thread previews.
package job

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
)

// DefaultPreviewLimit is the snippet length of a thread preview.
const DefaultPreviewLimit = 400

type Service struct {
	jobs         out.JobRepository
	snapshots    out.SnapshotRepository
	events       out.EventRepository
	previewLimit int
	now          func() time.Time
}

func NewService(jobs out.JobRepository, snapshots out.SnapshotRepository, events out.EventRepository, previewLimit int) *Service {
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	return &Service{
		jobs:         jobs,
		snapshots:    snapshots,
		events:       events,
		previewLimit: previewLimit,
		now:          time.Now,
	}
}

var _ in.JobService = (*Service)(nil)

func (s *Service) List(ctx context.Context, userID string) ([]*domain.JobApplication, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	jobs, err := s.jobs.ListActive(ctx, userID)
	if err != nil {
		return nil, apperr.StoreError("list jobs", err)
	}
	return jobs, nil
}

func (s *Service) Create(ctx context.Context, userID string, req *in.CreateJobRequest) (*domain.JobApplication, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	if req == nil {
		return nil, apperr.BadRequest("request body required")
	}

	status := req.CurrentStatus
	if status == "" {
		status = domain.StatusApplied
	}
	if !status.Valid() {
		return nil, apperr.InvalidInput("currentStatus", "must be one of applied, interview, offer, rejected")
	}
	source := req.Source
	if source == "" {
		source = domain.JobSourceOther
	}
	if !source.Valid() {
		return nil, apperr.InvalidInput("source", "must be one of linkedin, referral, careers, other")
	}
	if req.Company.IsUnknown() {
		return nil, apperr.InvalidInput("company", "required")
	}

	now := s.now()
	applied := req.AppliedDate
	if applied.IsZero() {
		applied = now
	}

	job := &domain.JobApplication{
		ID:             uuid.NewString(),
		UserID:         userID,
		Company:        asUserEntity(req.Company),
		Role:           asUserEntity(req.Role),
		Source:         source,
		AppliedDate:    applied,
		CurrentStatus:  status,
		StatusSource:   domain.StatusSourceUser,
		JobDescription: strings.TrimSpace(req.JobDescription),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperr.StoreError("create job", err)
	}

	s.record(ctx, job)
	return job, nil
}

// Update applies user edits. Any edit locks the job against automation.
func (s *Service) Update(ctx context.Context, userID, jobID string, req *in.UpdateJobRequest) (*domain.JobApplication, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	if req == nil {
		return nil, apperr.ValidationFailed("no updatable fields")
	}

	patch := &domain.JobPatch{}
	if req.Company != nil {
		c := asUserEntity(*req.Company)
		patch.Company = &c
	}
	if req.Role != nil {
		r := asUserEntity(*req.Role)
		patch.Role = &r
	}
	if req.CurrentStatus != nil {
		if !req.CurrentStatus.Valid() {
			return nil, apperr.InvalidInput("currentStatus", "must be one of applied, interview, offer, rejected")
		}
		status := *req.CurrentStatus
		patch.CurrentStatus = &status
	}
	if req.JobDescription != nil {
		d := strings.TrimSpace(*req.JobDescription)
		patch.JobDescription = &d
	}
	if patch.IsEmpty() {
		return nil, apperr.ValidationFailed("no updatable fields")
	}
	src := domain.StatusSourceUser
	patch.StatusSource = &src

	existing, err := s.jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	if existing.IsDeleted() {
		return nil, apperr.NotFound("job")
	}

	updated, err := s.jobs.Update(ctx, userID, jobID, patch)
	if err != nil {
		return nil, s.lookupError(err)
	}

	if patch.CurrentStatus != nil && *patch.CurrentStatus != existing.CurrentStatus {
		s.record(ctx, updated)
	}
	return updated, nil
}

// Delete soft-deletes. The thread stays reserved so sync will not recreate it.
func (s *Service) Delete(ctx context.Context, userID, jobID string) error {
	if userID == "" {
		return apperr.AuthRequired("")
	}
	if err := s.jobs.SoftDelete(ctx, userID, jobID, s.now()); err != nil {
		return s.lookupError(err)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, userID string) (*domain.JobStats, error) {
	jobs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &domain.JobStats{}
	for _, j := range jobs {
		stats.Add(j.CurrentStatus)
	}
	return stats, nil
}

func (s *Service) Timeline(ctx context.Context, userID, jobID string) ([]*domain.ApplicationEvent, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	if _, err := s.jobs.GetByID(ctx, userID, jobID); err != nil {
		return nil, s.lookupError(err)
	}
	if s.events == nil {
		return []*domain.ApplicationEvent{}, nil
	}
	events, err := s.events.ListByJob(ctx, userID, jobID)
	if err != nil {
		return nil, apperr.StoreError("list events", err)
	}
	return events, nil
}

func (s *Service) PreviewByThread(ctx context.Context, userID, threadID string) (*domain.EmailSnapshot, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	if threadID == "" {
		return nil, apperr.InvalidInput("threadId", "required")
	}
	snap, err := s.snapshots.LatestByThread(ctx, userID, threadID)
	if err != nil {
		return nil, apperr.StoreError("latest snapshot", err)
	}
	if snap == nil {
		return nil, nil
	}
	preview := snap.Preview(s.previewLimit)
	return &preview, nil
}

func (s *Service) lookupError(err error) error {
	if errors.Is(err, out.ErrNotFound) {
		return apperr.NotFound("job")
	}
	return apperr.StoreError("job", err)
}

func (s *Service) record(ctx context.Context, job *domain.JobApplication) {
	if s.events == nil {
		return
	}
	ev := &domain.ApplicationEvent{
		ID:               uuid.NewString(),
		UserID:           job.UserID,
		JobApplicationID: job.ID,
		Type:             job.CurrentStatus,
		Source:           domain.EventSourceManual,
		EmailThreadID:    job.EmailThreadID,
		CreatedAt:        s.now(),
	}
	if err := s.events.Record(ctx, ev); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("job_id", job.ID).Warn("failed to record application event")
	}
}

// asUserEntity marks a value as user supplied.
func asUserEntity(e domain.Entity) domain.Entity {
	if e.IsUnknown() {
		return domain.UnknownEntity()
	}
	return domain.Entity{Value: strings.TrimSpace(e.Value), Confidence: 1, Source: domain.EntitySourceUser}
}
