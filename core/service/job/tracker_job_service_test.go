package job

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_server/adapter/out/memory"
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/service/reconcile"
	"tracker_server/pkg/apperr"
)

const testUser = "user-1"

type fixture struct {
	svc       *Service
	jobs      *memory.JobStore
	snapshots *memory.SnapshotStore
	events    *memory.EventStore
}

func newFixture() *fixture {
	f := &fixture{
		jobs:      memory.NewJobStore(),
		snapshots: memory.NewSnapshotStore(),
		events:    memory.NewEventStore(),
	}
	f.svc = NewService(f.jobs, f.snapshots, f.events, 0)
	return f
}

func ptr[T any](v T) *T { return &v }

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.svc.Create(ctx, testUser, &in.CreateJobRequest{
		Company: domain.Entity{Value: " Acme ", Confidence: 0.2, Source: domain.EntitySourceEmail},
		Role:    domain.UserEntity("Backend Engineer"),
		Source:  domain.JobSourceReferral,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Entity{Value: "Acme", Confidence: 1, Source: domain.EntitySourceUser}, job.Company)
	assert.Equal(t, domain.StatusApplied, job.CurrentStatus)
	assert.Equal(t, domain.StatusSourceUser, job.StatusSource)
	assert.Empty(t, job.EmailThreadID)
	assert.False(t, job.AppliedDate.IsZero())

	// Manual jobs have no thread and stay independent.
	second, err := f.svc.Create(ctx, testUser, &in.CreateJobRequest{Company: domain.UserEntity("Acme")})
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, second.ID)

	events, err := f.svc.Timeline(ctx, testUser, job.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSourceManual, events[0].Source)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		req  *in.CreateJobRequest
		code string
	}{
		{"nil", nil, apperr.CodeBadRequest},
		{"no company", &in.CreateJobRequest{}, apperr.CodeInvalidInput},
		{"bad status", &in.CreateJobRequest{Company: domain.UserEntity("Acme"), CurrentStatus: "ghosted"}, apperr.CodeInvalidInput},
		{"bad source", &in.CreateJobRequest{Company: domain.UserEntity("Acme"), Source: "billboard"}, apperr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), testUser, tt.req)
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestUpdate_LocksAgainstAutomation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	engine := reconcile.NewEngine(f.jobs, f.snapshots, f.events)

	msg := &domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Interview scheduled with Acme"}
	res, err := engine.Reconcile(ctx, &reconcile.Input{
		UserID: testUser, Message: msg, Intent: domain.IntentInterview,
		Company: domain.Entity{Value: "Acme", Confidence: 0.6, Source: domain.EntitySourceEmail},
		Role:    domain.UnknownEntity(),
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, testUser, res.JobID, &in.UpdateJobRequest{Role: ptr(domain.Entity{Value: "Staff Engineer"})})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSourceUser, updated.StatusSource)
	assert.Equal(t, domain.Entity{Value: "Staff Engineer", Confidence: 1, Source: domain.EntitySourceUser}, updated.Role)

	rejected := &domain.MailMessage{ID: "m2", ThreadID: "t1", Subject: "Unfortunately"}
	after, err := engine.Reconcile(ctx, &reconcile.Input{
		UserID: testUser, Message: rejected, Intent: domain.IntentRejected,
		Company: domain.UnknownEntity(), Role: domain.UnknownEntity(),
	})
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionNoOp, after.Action)

	got, err := f.jobs.GetByID(ctx, testUser, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInterview, got.CurrentStatus)
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.svc.Create(ctx, testUser, &in.CreateJobRequest{Company: domain.UserEntity("Acme")})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, testUser, job.ID, &in.UpdateJobRequest{})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidationFailed))

	_, err = f.svc.Update(ctx, testUser, job.ID, &in.UpdateJobRequest{CurrentStatus: ptr(domain.JobStatus("hired"))})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))

	_, err = f.svc.Update(ctx, testUser, "missing", &in.UpdateJobRequest{JobDescription: ptr("x")})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = f.svc.Update(ctx, "user-2", job.ID, &in.UpdateJobRequest{JobDescription: ptr("x")})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	require.NoError(t, f.svc.Delete(ctx, testUser, job.ID))
	_, err = f.svc.Update(ctx, testUser, job.ID, &in.UpdateJobRequest{JobDescription: ptr("x")})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestUpdate_StatusRecordsEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.svc.Create(ctx, testUser, &in.CreateJobRequest{Company: domain.UserEntity("Acme")})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, testUser, job.ID, &in.UpdateJobRequest{CurrentStatus: ptr(domain.StatusOffer)})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, testUser, job.ID, &in.UpdateJobRequest{JobDescription: ptr("  Go, Kafka  ")})
	require.NoError(t, err)

	events, err := f.svc.Timeline(ctx, testUser, job.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StatusOffer, events[1].Type)

	got, err := f.jobs.GetByID(ctx, testUser, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go, Kafka", got.JobDescription)
}

func TestDelete_SoftDeletes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.svc.Create(ctx, testUser, &in.CreateJobRequest{Company: domain.UserEntity("Acme")})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, testUser, job.ID))

	list, err := f.svc.List(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, list)

	stored, err := f.jobs.GetByID(ctx, testUser, job.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.DeletedAt)

	err = f.svc.Delete(ctx, testUser, "missing")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestList_OrderAndStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []domain.JobStatus{domain.StatusApplied, domain.StatusInterview, domain.StatusApplied, domain.StatusRejected} {
		_, err := f.svc.Create(ctx, testUser, &in.CreateJobRequest{
			Company:       domain.UserEntity("Company"),
			CurrentStatus: status,
			AppliedDate:   base.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	list, err := f.svc.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, domain.StatusRejected, list[0].CurrentStatus)
	assert.True(t, list[0].AppliedDate.After(list[3].AppliedDate))

	stats, err := f.svc.Stats(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStats{Total: 4, Applied: 2, Interview: 1, Rejected: 1}, *stats)
}

func TestPreviewByThread(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	none, err := f.svc.PreviewByThread(ctx, testUser, "t1")
	require.NoError(t, err)
	assert.Nil(t, none)

	long := strings.Repeat("word ", 200)
	require.NoError(t, f.snapshots.UpsertByMessage(ctx, &domain.EmailSnapshot{
		UserID: testUser, EmailMessageID: "m1", EmailThreadID: "t1", Subject: "old", Snippet: "first",
	}))
	require.NoError(t, f.snapshots.UpsertByMessage(ctx, &domain.EmailSnapshot{
		UserID: testUser, EmailMessageID: "m2", EmailThreadID: "t1", Subject: " Latest \n update ", Snippet: long,
	}))

	preview, err := f.svc.PreviewByThread(ctx, testUser, "t1")
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.Equal(t, "Latest update", preview.Subject)
	assert.Len(t, []rune(preview.Snippet), 403)
	assert.True(t, strings.HasSuffix(preview.Snippet, "..."))

	_, err = f.svc.PreviewByThread(ctx, testUser, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))
}
