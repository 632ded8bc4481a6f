package mailsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"tracker_server/adapter/out/memory"
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/reconcile"
	"tracker_server/pkg/apperr"
)

const testUser = "user-1"

type fixture struct {
	svc         *Service
	provider    *fakeProvider
	jobs        *memory.JobStore
	snapshots   *memory.SnapshotStore
	checkpoints *memory.CheckpointStore
}

func newFixture(t *testing.T, classifier IntentClassifier) *fixture {
	t.Helper()
	if classifier == nil {
		rs, err := classification.DefaultRuleSet()
		require.NoError(t, err)
		classifier = classification.NewClassifier(rs)
	}
	f := &fixture{
		provider:    newFakeProvider(),
		jobs:        memory.NewJobStore(),
		snapshots:   memory.NewSnapshotStore(),
		checkpoints: memory.NewCheckpointStore(),
	}
	engine := reconcile.NewEngine(f.jobs, f.snapshots, memory.NewEventStore())
	f.svc = NewService(f.provider, classifier, engine, f.checkpoints, Config{FetchConcurrency: 3})
	return f
}

func token() *oauth2.Token {
	return &oauth2.Token{AccessToken: "access"}
}

func (f *fixture) run(t *testing.T, req *in.SyncRequest) *in.SyncResult {
	t.Helper()
	if req.UserID == "" {
		req.UserID = testUser
	}
	if req.Credential == nil {
		req.Credential = token()
	}
	res, err := f.svc.RunSync(context.Background(), req)
	require.NoError(t, err)
	return res
}

func (f *fixture) checkpoint(t *testing.T) *domain.SyncCheckpoint {
	t.Helper()
	cp, err := f.checkpoints.Get(context.Background(), testUser)
	require.NoError(t, err)
	return cp
}

func TestRunSync_Batch(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.add(domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Thank you for applying to Acme - Software Engineer", From: "careers@acme.com"})
	f.provider.add(domain.MailMessage{ID: "m2", ThreadID: "t1", Subject: "Interview scheduled with Acme", Snippet: "Tuesday 10am"})
	f.provider.add(domain.MailMessage{ID: "m3", ThreadID: "t2", Subject: "Quick question", Snippet: "Are you free?"})
	f.provider.add(domain.MailMessage{ID: "m4", ThreadID: "t3", Subject: "Join our data science bootcamp", Snippet: "Limited seats"})
	f.provider.add(domain.MailMessage{ID: "m5", ThreadID: "t4", Subject: "Your OTP is 1234", Snippet: ""})

	res := f.run(t, &in.SyncRequest{MaxResults: 30})

	assert.Equal(t, 5, res.Candidates)
	assert.Equal(t, domain.SyncSummary{Applied: 1, Interview: 1, Unknown: 1, Ignored: 2}, res.Summary)
	assert.Equal(t, JobQuery, f.provider.lastQuery.Query)
	assert.Nil(t, f.provider.lastQuery.Since)
	assert.Equal(t, 30, f.provider.lastQuery.Limit)

	ctx := context.Background()
	jobs, err := f.jobs.ListActive(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.StatusInterview, jobs[0].CurrentStatus)
	assert.Equal(t, "Acme", jobs[0].Company.Value)
	assert.Equal(t, "Software Engineer", jobs[0].Role.Value)

	snaps, err := f.snapshots.ListByUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "m3", snaps[0].EmailMessageID)

	cp := f.checkpoint(t)
	require.NotNil(t, cp)
	assert.Equal(t, res.Summary, cp.LastSyncSummary)
	assert.Equal(t, res.SyncedAt, cp.LastSyncDate)
}

func TestRunSync_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *in.SyncRequest
		code string
	}{
		{"nil request", nil, apperr.CodeUnauthorized},
		{"no user", &in.SyncRequest{Credential: token(), MaxResults: 10}, apperr.CodeUnauthorized},
		{"no credential", &in.SyncRequest{UserID: testUser, MaxResults: 10}, apperr.CodeUnauthorized},
		{"empty credential", &in.SyncRequest{UserID: testUser, Credential: &oauth2.Token{}, MaxResults: 10}, apperr.CodeUnauthorized},
		{"too many", &in.SyncRequest{UserID: testUser, Credential: token(), MaxResults: 101}, apperr.CodeInvalidInput},
		{"negative", &in.SyncRequest{UserID: testUser, Credential: token(), MaxResults: -1}, apperr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.provider.add(domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Thank you for applying"})

			_, err := f.svc.RunSync(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, tt.code), "got %v", err)

			list, meta := f.provider.calls()
			assert.Zero(t, list)
			assert.Zero(t, meta)
			assert.Nil(t, f.checkpoint(t))
		})
	}
}

func TestRunSync_DefaultMaxResults(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, &in.SyncRequest{})
	assert.Equal(t, 50, f.provider.lastQuery.Limit)
}

func TestRunSync_CredentialRejected(t *testing.T) {
	rejected := out.NewProviderError("gmail", out.ProviderErrAuth, "invalid credentials", nil, false)

	t.Run("listing", func(t *testing.T) {
		f := newFixture(t, nil)
		f.provider.listErr = rejected

		_, err := f.svc.RunSync(context.Background(), &in.SyncRequest{UserID: testUser, Credential: token(), MaxResults: 10})
		require.Error(t, err)
		assert.True(t, apperr.HasCode(err, apperr.CodeCredentialInvalid))
		assert.Nil(t, f.checkpoint(t))
	})

	t.Run("metadata", func(t *testing.T) {
		f := newFixture(t, nil)
		f.provider.add(domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Thank you for applying"})
		f.provider.add(domain.MailMessage{ID: "m2", ThreadID: "t2", Subject: "Thank you for applying"})
		f.provider.metadataErr["m2"] = out.NewProviderError("gmail", out.ProviderErrTokenExpired, "token expired", nil, false)

		_, err := f.svc.RunSync(context.Background(), &in.SyncRequest{UserID: testUser, Credential: token(), MaxResults: 10})
		require.Error(t, err)
		assert.True(t, apperr.HasCode(err, apperr.CodeCredentialInvalid))
		assert.Nil(t, f.checkpoint(t))

		jobs, err := f.jobs.ListActive(context.Background(), testUser)
		require.NoError(t, err)
		assert.Empty(t, jobs, "nothing may be reconciled before the batch aborts")
	})
}

func TestRunSync_TransientFetchIsolated(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.add(domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Thank you for applying to Acme"})
	f.provider.add(domain.MailMessage{ID: "m2", ThreadID: "t2", Subject: "Thank you for applying to Globex"})
	f.provider.metadataErr["m1"] = out.NewProviderError("gmail", out.ProviderErrServer, "backend error", nil, true)

	res := f.run(t, &in.SyncRequest{MaxResults: 10})

	assert.Equal(t, domain.SyncSummary{Applied: 1, Unknown: 1}, res.Summary)
	assert.NotNil(t, f.checkpoint(t))
}

func TestRunSync_LinkedInEnrichment(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.add(domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Your application was sent to Hooli", From: "LinkedIn <jobs-noreply@linkedin.com>"})
	f.provider.bodies["m1"] = "Your application was sent to Hooli.\nFrontend Engineer\nMountain View"
	f.provider.add(domain.MailMessage{ID: "m2", ThreadID: "t2", Subject: "Your application was sent to Initech", From: "LinkedIn <jobs-noreply@linkedin.com>"})
	f.provider.bodyErr["m2"] = errors.New("timeout")
	f.provider.add(domain.MailMessage{ID: "m3", ThreadID: "t3", Subject: "Thank you for applying to Globex", From: "careers@globex.com"})

	res := f.run(t, &in.SyncRequest{MaxResults: 10})
	assert.Equal(t, 3, res.Summary.Applied)

	ctx := context.Background()
	hooli, err := f.jobs.FindByThread(ctx, testUser, "t1", false)
	require.NoError(t, err)
	assert.Equal(t, "Frontend Engineer", hooli.Role.Value)
	assert.Equal(t, domain.JobSourceLinkedIn, hooli.Source)

	initech, err := f.jobs.FindByThread(ctx, testUser, "t2", false)
	require.NoError(t, err)
	assert.True(t, initech.Role.IsUnknown(), "failed enrichment keeps the original result")

	assert.Equal(t, 1, f.provider.bodyCalls["m1"])
	assert.Equal(t, 1, f.provider.bodyCalls["m2"])
	assert.Zero(t, f.provider.bodyCalls["m3"], "non-LinkedIn mail is never deep-fetched")
}

type panickyClassifier struct {
	inner IntentClassifier
}

func (c panickyClassifier) Classify(subject, snippet string) domain.IntentTag {
	if subject == "boom" {
		panic("malformed message")
	}
	return c.inner.Classify(subject, snippet)
}

func TestRunSync_PanicIsolated(t *testing.T) {
	rs, err := classification.DefaultRuleSet()
	require.NoError(t, err)

	f := newFixture(t, panickyClassifier{inner: classification.NewClassifier(rs)})
	f.provider.add(domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "boom"})
	f.provider.add(domain.MailMessage{ID: "m2", ThreadID: "t2", Subject: "Thank you for applying to Acme"})

	res := f.run(t, &in.SyncRequest{MaxResults: 10})
	assert.Equal(t, domain.SyncSummary{Applied: 1, Unknown: 1}, res.Summary)
	assert.NotNil(t, f.checkpoint(t))
}

func TestRunSync_CheckpointMode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	last := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.checkpoints.Advance(ctx, &domain.SyncCheckpoint{UserID: testUser, LastSyncDate: last}))

	f.run(t, &in.SyncRequest{UseCheckpoint: true})
	require.NotNil(t, f.provider.lastQuery.Since)
	assert.Equal(t, last, *f.provider.lastQuery.Since)

	// Checkpoint moves forward, never back.
	f.svc.now = func() time.Time { return last.Add(-24 * time.Hour) }
	f.run(t, &in.SyncRequest{UseCheckpoint: true})
	assert.True(t, f.checkpoint(t).LastSyncDate.After(last))
}

func TestRunSync_ZeroCandidatesStillCheckpoints(t *testing.T) {
	f := newFixture(t, nil)
	res := f.run(t, &in.SyncRequest{MaxResults: 5})
	assert.Zero(t, res.Candidates)
	assert.NotNil(t, f.checkpoint(t))
}

type failingCheckpoints struct {
	*memory.CheckpointStore
}

func (failingCheckpoints) Advance(ctx context.Context, cp *domain.SyncCheckpoint) error {
	return errors.New("disk full")
}

type failingSnapshots struct {
	*memory.SnapshotStore
}

func (failingSnapshots) UpsertByMessage(ctx context.Context, snap *domain.EmailSnapshot) error {
	return errors.New("write failed")
}

func TestRunSync_StoreErrorAbortsBatch(t *testing.T) {
	rs, err := classification.DefaultRuleSet()
	require.NoError(t, err)

	provider := newFakeProvider()
	provider.add(domain.MailMessage{ID: "m1", ThreadID: "t1", Subject: "Quick question"})
	checkpoints := memory.NewCheckpointStore()
	engine := reconcile.NewEngine(memory.NewJobStore(), failingSnapshots{memory.NewSnapshotStore()}, nil)
	svc := NewService(provider, classification.NewClassifier(rs), engine, checkpoints, Config{})

	_, err = svc.RunSync(context.Background(), &in.SyncRequest{UserID: testUser, Credential: token(), MaxResults: 5})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeStoreError))

	cp, err := checkpoints.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestRunSync_CheckpointWriteFailure(t *testing.T) {
	rs, err := classification.DefaultRuleSet()
	require.NoError(t, err)

	engine := reconcile.NewEngine(memory.NewJobStore(), memory.NewSnapshotStore(), nil)
	svc := NewService(newFakeProvider(), classification.NewClassifier(rs), engine, failingCheckpoints{memory.NewCheckpointStore()}, Config{})

	_, err = svc.RunSync(context.Background(), &in.SyncRequest{UserID: testUser, Credential: token(), MaxResults: 5})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeStoreError))
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	cp, err := f.svc.Status(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, cp)

	f.run(t, &in.SyncRequest{MaxResults: 5})
	cp, err = f.svc.Status(context.Background(), testUser)
	require.NoError(t, err)
	assert.NotNil(t, cp)

	_, err = f.svc.Status(context.Background(), "")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}
