// Package reconcile decides what one classified message does to the job board.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
)

type Action string

const (
	ActionCreated          Action = "created"
	ActionUpgraded         Action = "upgraded"
	ActionRestoredAsReview Action = "restored-as-review"
	ActionParkedReview     Action = "parked-review"
	ActionNoOp             Action = "no-op"
)

type Input struct {
	UserID  string
	Message *domain.MailMessage
	Intent  domain.IntentTag
	Company domain.Entity
	Role    domain.Entity
}

type Result struct {
	// JobID is empty unless a job was created, upgraded or matched.
	JobID  string
	Action Action
}

// Engine applies the create / upgrade / park decision table.
type Engine struct {
	jobs      out.JobRepository
	snapshots out.SnapshotRepository
	events    out.EventRepository
	now       func() time.Time
}

func NewEngine(jobs out.JobRepository, snapshots out.SnapshotRepository, events out.EventRepository) *Engine {
	return &Engine{
		jobs:      jobs,
		snapshots: snapshots,
		events:    events,
		now:       time.Now,
	}
}

// Reconcile is idempotent for a given message as long as the user does not
// edit the job in between.
func (e *Engine) Reconcile(ctx context.Context, in *Input) (*Result, error) {
	msg := in.Message

	if in.Intent.IsDropped() {
		// Nothing is kept from noise, not even an older snapshot.
		if err := e.snapshots.DeleteByMessage(ctx, in.UserID, msg.ID); err != nil {
			return nil, apperr.StoreError("delete snapshot", err)
		}
		return &Result{Action: ActionNoOp}, nil
	}

	status, ok := in.Intent.Status()
	if !ok || msg.ThreadID == "" {
		if err := e.park(ctx, in.UserID, msg); err != nil {
			return nil, err
		}
		return &Result{Action: ActionParkedReview}, nil
	}

	existing, err := e.jobs.FindByThread(ctx, in.UserID, msg.ThreadID, true)
	if err != nil {
		return nil, apperr.StoreError("find job by thread", err)
	}

	switch domain.ThreadStateOf(existing) {
	case domain.ThreadNone:
		return e.create(ctx, in, status)
	case domain.ThreadDeleted:
		// Deletion is sticky: a human has to confirm the thread again.
		if err := e.park(ctx, in.UserID, msg); err != nil {
			return nil, err
		}
		return &Result{JobID: existing.ID, Action: ActionRestoredAsReview}, nil
	default:
		return e.merge(ctx, in, existing, status)
	}
}

func (e *Engine) create(ctx context.Context, in *Input, status domain.JobStatus) (*Result, error) {
	msg := in.Message
	now := e.now()

	job := &domain.JobApplication{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Company:       in.Company,
		Role:          in.Role,
		Source:        msg.JobSource(),
		AppliedDate:   msg.ParsedDate(now),
		CurrentStatus: status,
		StatusSource:  domain.StatusSourceAuto,
		EmailThreadID: msg.ThreadID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, apperr.StoreError("create job", err)
	}
	if err := e.snapshots.DeleteByMessage(ctx, in.UserID, msg.ID); err != nil {
		return nil, apperr.StoreError("delete snapshot", err)
	}

	e.record(ctx, job, in, status)
	return &Result{JobID: job.ID, Action: ActionCreated}, nil
}

func (e *Engine) merge(ctx context.Context, in *Input, job *domain.JobApplication, status domain.JobStatus) (*Result, error) {
	if job.StatusSource == domain.StatusSourceUser {
		return &Result{JobID: job.ID, Action: ActionNoOp}, nil
	}

	msg := in.Message
	patch := &domain.JobPatch{}

	if job.Source == "" && msg.IsLinkedIn() {
		src := domain.JobSourceLinkedIn
		patch.Source = &src
	}
	if status.Rank() > job.CurrentStatus.Rank() {
		patch.CurrentStatus = &status
	}
	if company, changed := domain.UpgradeUnknown(job.Company, in.Company); changed {
		patch.Company = &company
	}
	if role, changed := domain.UpgradeUnknown(job.Role, in.Role); changed {
		patch.Role = &role
	}

	if patch.IsEmpty() {
		return &Result{JobID: job.ID, Action: ActionNoOp}, nil
	}

	updated, err := e.jobs.Update(ctx, in.UserID, job.ID, patch)
	if err != nil {
		return nil, apperr.StoreError("update job", err)
	}
	if err := e.snapshots.DeleteByMessage(ctx, in.UserID, msg.ID); err != nil {
		return nil, apperr.StoreError("delete snapshot", err)
	}

	if patch.CurrentStatus != nil {
		e.record(ctx, updated, in, status)
	}
	return &Result{JobID: job.ID, Action: ActionUpgraded}, nil
}

// park upserts the review snapshot for msg.
func (e *Engine) park(ctx context.Context, userID string, msg *domain.MailMessage) error {
	now := e.now()
	snap := &domain.EmailSnapshot{
		UserID:         userID,
		EmailMessageID: msg.ID,
		EmailThreadID:  msg.ThreadID,
		Subject:        msg.Subject,
		From:           msg.From,
		Snippet:        msg.Snippet,
		EmailDate:      msg.ParsedDate(now),
		Intent:         domain.IntentUnknown,
	}
	snap.Sanitize()
	if err := e.snapshots.UpsertByMessage(ctx, snap); err != nil {
		return apperr.StoreError("upsert snapshot", err)
	}
	return nil
}

// record writes the audit event. Failures are logged only.
func (e *Engine) record(ctx context.Context, job *domain.JobApplication, in *Input, status domain.JobStatus) {
	if e.events == nil {
		return
	}
	ev := &domain.ApplicationEvent{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		JobApplicationID: job.ID,
		Type:             status,
		Source:           domain.EventSourceEmail,
		EmailThreadID:    in.Message.ThreadID,
		EmailMessageID:   in.Message.ID,
		DetectedIntent:   in.Intent,
		FinalIntent:      in.Intent,
		CreatedAt:        e.now(),
	}
	if err := e.events.Record(ctx, ev); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("job_id", job.ID).Warn("failed to record application event")
	}
}
