package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_server/adapter/out/memory"
	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/apperr"
)

const testUser = "user-1"

type fixture struct {
	engine    *Engine
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
	f.engine = NewEngine(f.jobs, f.snapshots, f.events)
	return f
}

func acme() domain.Entity {
	return domain.Entity{Value: "Acme", Confidence: 0.6, Source: domain.EntitySourceEmail}
}

func swe() domain.Entity {
	return domain.Entity{Value: "Software Engineer", Confidence: 0.65, Source: domain.EntitySourceEmail}
}

func message(id, thread string) *domain.MailMessage {
	return &domain.MailMessage{
		ID:       id,
		ThreadID: thread,
		Subject:  "Thank you for applying to Acme - Software Engineer",
		From:     "careers@acme.com",
		Date:     "Mon, 15 Jan 2024 10:00:00 +0000",
	}
}

func (f *fixture) reconcile(t *testing.T, msg *domain.MailMessage, intent domain.IntentTag, company, role domain.Entity) *Result {
	t.Helper()
	res, err := f.engine.Reconcile(context.Background(), &Input{
		UserID: testUser, Message: msg, Intent: intent, Company: company, Role: role,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) job(t *testing.T, thread string) *domain.JobApplication {
	t.Helper()
	job, err := f.jobs.FindByThread(context.Background(), testUser, thread, true)
	require.NoError(t, err)
	return job
}

func (f *fixture) snapshotCount(t *testing.T) int {
	t.Helper()
	snaps, err := f.snapshots.ListByUser(context.Background(), testUser)
	require.NoError(t, err)
	return len(snaps)
}

func TestReconcile_ApplicationLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res := f.reconcile(t, message("m1", "t1"), domain.IntentApplied, acme(), swe())
	assert.Equal(t, ActionCreated, res.Action)

	job := f.job(t, "t1")
	require.NotNil(t, job)
	assert.Equal(t, res.JobID, job.ID)
	assert.Equal(t, domain.StatusApplied, job.CurrentStatus)
	assert.Equal(t, domain.StatusSourceAuto, job.StatusSource)
	assert.Equal(t, domain.JobSourceOther, job.Source)
	assert.Equal(t, "Acme", job.Company.Value)
	assert.Equal(t, "Software Engineer", job.Role.Value)
	assert.Equal(t, 2024, job.AppliedDate.Year())

	interview := &domain.MailMessage{ID: "m2", ThreadID: "t1", Subject: "Interview scheduled with Acme", Snippet: "..."}
	res = f.reconcile(t, interview, domain.IntentInterview, domain.UnknownEntity(), domain.UnknownEntity())
	assert.Equal(t, ActionUpgraded, res.Action)
	assert.Equal(t, domain.StatusInterview, f.job(t, "t1").CurrentStatus)

	// User edits the role: the job is now locked against automation.
	role := domain.UserEntity("Platform Engineer")
	src := domain.StatusSourceUser
	_, err := f.jobs.Update(ctx, testUser, job.ID, &domain.JobPatch{Role: &role, StatusSource: &src})
	require.NoError(t, err)

	rejected := &domain.MailMessage{ID: "m3", ThreadID: "t1", Subject: "Update", Snippet: "Unfortunately..."}
	res = f.reconcile(t, rejected, domain.IntentRejected, acme(), swe())
	assert.Equal(t, ActionNoOp, res.Action)

	after := f.job(t, "t1")
	assert.Equal(t, domain.StatusInterview, after.CurrentStatus)
	assert.Equal(t, "Platform Engineer", after.Role.Value)

	events, err := f.events.ListByJob(ctx, testUser, job.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StatusApplied, events[0].Type)
	assert.Equal(t, domain.StatusInterview, events[1].Type)
	assert.Equal(t, domain.EventSourceEmail, events[1].Source)
}

func TestReconcile_RankNeverRegresses(t *testing.T) {
	tests := []struct {
		name     string
		existing domain.IntentTag
		incoming domain.IntentTag
		want     domain.JobStatus
	}{
		{"offer then applied", domain.IntentOffer, domain.IntentApplied, domain.StatusOffer},
		{"interview then applied", domain.IntentInterview, domain.IntentApplied, domain.StatusInterview},
		{"rejected is terminal", domain.IntentRejected, domain.IntentOffer, domain.StatusRejected},
		{"offer then rejected", domain.IntentOffer, domain.IntentRejected, domain.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.reconcile(t, message("m1", "t1"), tt.existing, acme(), swe())
			f.reconcile(t, message("m2", "t1"), tt.incoming, acme(), swe())
			assert.Equal(t, tt.want, f.job(t, "t1").CurrentStatus)
		})
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture()
	msg := message("m1", "t1")

	first := f.reconcile(t, msg, domain.IntentInterview, domain.UnknownEntity(), swe())
	before := *f.job(t, "t1")

	second := f.reconcile(t, msg, domain.IntentInterview, domain.UnknownEntity(), swe())
	after := *f.job(t, "t1")

	assert.Equal(t, ActionCreated, first.Action)
	assert.Equal(t, ActionNoOp, second.Action)
	assert.Equal(t, before, after)
}

func TestReconcile_UnknownParksSnapshot(t *testing.T) {
	f := newFixture()
	msg := &domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "  Quick\n question ", From: "x@y.com", Snippet: "hi"}

	res := f.reconcile(t, msg, domain.IntentUnknown, domain.UnknownEntity(), domain.UnknownEntity())
	assert.Equal(t, ActionParkedReview, res.Action)
	assert.Empty(t, res.JobID)

	// Re-sync of the same message does not duplicate.
	f.reconcile(t, msg, domain.IntentUnknown, domain.UnknownEntity(), domain.UnknownEntity())

	snaps, err := f.snapshots.ListByUser(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "Quick question", snaps[0].Subject)
	assert.Equal(t, domain.IntentUnknown, snaps[0].Intent)
	assert.Nil(t, f.job(t, "t1"))
}

func TestReconcile_DroppedIntents(t *testing.T) {
	for _, intent := range []domain.IntentTag{domain.IntentIgnore, domain.IntentMarketing} {
		t.Run(string(intent), func(t *testing.T) {
			f := newFixture()
			msg := message("m1", "t1")

			// An older run parked this message before the rules changed.
			f.reconcile(t, msg, domain.IntentUnknown, domain.UnknownEntity(), domain.UnknownEntity())
			require.Equal(t, 1, f.snapshotCount(t))

			res := f.reconcile(t, msg, intent, acme(), swe())
			assert.Equal(t, ActionNoOp, res.Action)
			assert.Zero(t, f.snapshotCount(t))
			assert.Nil(t, f.job(t, "t1"))
		})
	}
}

func TestReconcile_SoftDeletedThreadIsSticky(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.reconcile(t, message("m1", "t1"), domain.IntentApplied, acme(), swe())
	require.NoError(t, f.jobs.SoftDelete(ctx, testUser, created.JobID, time.Now()))

	res := f.reconcile(t, message("m2", "t1"), domain.IntentInterview, acme(), swe())
	assert.Equal(t, ActionRestoredAsReview, res.Action)

	job := f.job(t, "t1")
	require.NotNil(t, job)
	assert.True(t, job.IsDeleted())
	assert.Equal(t, domain.StatusApplied, job.CurrentStatus)

	live, err := f.jobs.FindByThread(ctx, testUser, "t1", false)
	require.NoError(t, err)
	assert.Nil(t, live)
	assert.Equal(t, 1, f.snapshotCount(t))
}

func TestReconcile_EntityUpgradeOnlyFromUnknown(t *testing.T) {
	f := newFixture()

	f.reconcile(t, message("m1", "t1"), domain.IntentApplied, domain.UnknownEntity(), domain.UnknownEntity())
	job := f.job(t, "t1")
	assert.True(t, job.Company.IsUnknown())
	assert.True(t, job.Role.IsUnknown())

	res := f.reconcile(t, message("m2", "t1"), domain.IntentApplied, acme(), domain.UnknownEntity())
	assert.Equal(t, ActionUpgraded, res.Action)
	assert.Equal(t, "Acme", f.job(t, "t1").Company.Value)

	globex := domain.Entity{Value: "Globex", Confidence: 0.75, Source: domain.EntitySourceEmail}
	res = f.reconcile(t, message("m3", "t1"), domain.IntentApplied, globex, swe())
	assert.Equal(t, ActionUpgraded, res.Action)

	job = f.job(t, "t1")
	assert.Equal(t, "Acme", job.Company.Value)
	assert.Equal(t, "Software Engineer", job.Role.Value)
	assert.Equal(t, domain.StatusSourceAuto, job.StatusSource)
}

func TestReconcile_ResolvedMessageDropsSnapshot(t *testing.T) {
	f := newFixture()
	msg := message("m1", "t1")

	f.reconcile(t, msg, domain.IntentUnknown, domain.UnknownEntity(), domain.UnknownEntity())
	require.Equal(t, 1, f.snapshotCount(t))

	res := f.reconcile(t, msg, domain.IntentApplied, acme(), swe())
	assert.Equal(t, ActionCreated, res.Action)
	assert.Zero(t, f.snapshotCount(t))
}

func TestReconcile_LinkedInSource(t *testing.T) {
	f := newFixture()
	msg := &domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Your application was sent to Acme", From: "LinkedIn <jobs-noreply@linkedin.com>"}

	f.reconcile(t, msg, domain.IntentApplied, acme(), domain.UnknownEntity())
	assert.Equal(t, domain.JobSourceLinkedIn, f.job(t, "t1").Source)
}

func TestReconcile_NoThreadParks(t *testing.T) {
	f := newFixture()
	msg := message("m1", "")

	res := f.reconcile(t, msg, domain.IntentApplied, acme(), swe())
	assert.Equal(t, ActionParkedReview, res.Action)
	assert.Equal(t, 1, f.snapshotCount(t))
}

type failingJobs struct {
	*memory.JobStore
	err error
}

func (f failingJobs) Create(ctx context.Context, job *domain.JobApplication) error { return f.err }

type failingEvents struct{}

func (failingEvents) Record(ctx context.Context, ev *domain.ApplicationEvent) error {
	return errors.New("events down")
}

func (failingEvents) ListByJob(ctx context.Context, userID, jobID string) ([]*domain.ApplicationEvent, error) {
	return nil, nil
}

func TestReconcile_StoreErrorPropagates(t *testing.T) {
	cause := errors.New("write conflict")
	engine := NewEngine(failingJobs{JobStore: memory.NewJobStore(), err: cause}, memory.NewSnapshotStore(), nil)

	_, err := engine.Reconcile(context.Background(), &Input{
		UserID: testUser, Message: message("m1", "t1"), Intent: domain.IntentApplied, Company: acme(), Role: swe(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, apperr.HasCode(err, apperr.CodeStoreError))
}

func TestReconcile_EventFailureIsNotFatal(t *testing.T) {
	jobs := memory.NewJobStore()
	engine := NewEngine(jobs, memory.NewSnapshotStore(), failingEvents{})

	res, err := engine.Reconcile(context.Background(), &Input{
		UserID: testUser, Message: message("m1", "t1"), Intent: domain.IntentApplied, Company: acme(), Role: swe(),
	})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	job, err := jobs.GetByID(context.Background(), testUser, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApplied, job.CurrentStatus)
}

var _ out.EventRepository = failingEvents{}
