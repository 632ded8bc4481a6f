package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

// =============================================================================
// MongoDB Job Application Adapter
// =============================================================================

const collectionJobs = "job_applications"

// JobAdapter implements out.JobRepository using MongoDB.
type JobAdapter struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewJobAdapter creates a new MongoDB job adapter.
func NewJobAdapter(db *mongo.Database) *JobAdapter {
	return &JobAdapter{
		collection: db.Collection(collectionJobs),
		now:        time.Now,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
// The thread index covers soft-deleted documents too, so a thread can never
// be bound to two applications.
func (a *JobAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "email_thread_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email_thread_id": bson.M{"$gt": ""}}),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "deleted_at", Value: 1},
				{Key: "applied_date", Value: -1},
			},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type entityDocument struct {
	Value      string  `bson:"value"`
	Confidence float64 `bson:"confidence"`
	Source     string  `bson:"source"`
}

type jobDocument struct {
	ID             string         `bson:"id"`
	UserID         string         `bson:"user_id"`
	Company        entityDocument `bson:"company"`
	Role           entityDocument `bson:"role"`
	Source         string         `bson:"source"`
	AppliedDate    time.Time      `bson:"applied_date"`
	CurrentStatus  string         `bson:"current_status"`
	StatusSource   string         `bson:"status_source"`
	EmailThreadID  string         `bson:"email_thread_id,omitempty"`
	JobDescription string         `bson:"job_description,omitempty"`
	DeletedAt      *time.Time     `bson:"deleted_at"`
	CreatedAt      time.Time      `bson:"created_at"`
	UpdatedAt      time.Time      `bson:"updated_at"`
}

func toEntityDocument(e domain.Entity) entityDocument {
	return entityDocument{Value: e.Value, Confidence: e.Confidence, Source: string(e.Source)}
}

func (d entityDocument) toEntity() domain.Entity {
	return domain.Entity{Value: d.Value, Confidence: d.Confidence, Source: domain.EntitySource(d.Source)}
}

func toJobDocument(j *domain.JobApplication) *jobDocument {
	return &jobDocument{
		ID:             j.ID,
		UserID:         j.UserID,
		Company:        toEntityDocument(j.Company),
		Role:           toEntityDocument(j.Role),
		Source:         string(j.Source),
		AppliedDate:    j.AppliedDate.UTC(),
		CurrentStatus:  string(j.CurrentStatus),
		StatusSource:   string(j.StatusSource),
		EmailThreadID:  j.EmailThreadID,
		JobDescription: j.JobDescription,
		DeletedAt:      j.DeletedAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func (d *jobDocument) toEntity() *domain.JobApplication {
	return &domain.JobApplication{
		ID:             d.ID,
		UserID:         d.UserID,
		Company:        d.Company.toEntity(),
		Role:           d.Role.toEntity(),
		Source:         domain.JobSource(d.Source),
		AppliedDate:    d.AppliedDate,
		CurrentStatus:  domain.JobStatus(d.CurrentStatus),
		StatusSource:   domain.StatusSource(d.StatusSource),
		EmailThreadID:  d.EmailThreadID,
		JobDescription: d.JobDescription,
		DeletedAt:      d.DeletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// patchUpdate renders a patch as a $set document.
func patchUpdate(p *domain.JobPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if p.Company != nil {
		set["company"] = toEntityDocument(*p.Company)
	}
	if p.Role != nil {
		set["role"] = toEntityDocument(*p.Role)
	}
	if p.Source != nil {
		set["source"] = string(*p.Source)
	}
	if p.CurrentStatus != nil {
		set["current_status"] = string(*p.CurrentStatus)
	}
	if p.StatusSource != nil {
		set["status_source"] = string(*p.StatusSource)
	}
	if p.JobDescription != nil {
		set["job_description"] = *p.JobDescription
	}
	if p.ClearDeletedAt {
		set["deleted_at"] = nil
	}
	return bson.M{"$set": set}
}

// =============================================================================
// Operations
// =============================================================================

func (a *JobAdapter) GetByID(ctx context.Context, userID, id string) (*domain.JobApplication, error) {
	var doc jobDocument
	err := a.collection.FindOne(ctx, bson.M{"id": id, "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, out.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return doc.toEntity(), nil
}

func (a *JobAdapter) FindByThread(ctx context.Context, userID, threadID string, includeDeleted bool) (*domain.JobApplication, error) {
	if threadID == "" {
		return nil, nil
	}

	filter := bson.M{"user_id": userID, "email_thread_id": threadID}
	if !includeDeleted {
		filter["deleted_at"] = nil
	}
	// null sorts first, so a live record wins over a deleted one.
	opts := options.FindOne().SetSort(bson.D{{Key: "deleted_at", Value: 1}})

	var doc jobDocument
	err := a.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find job by thread: %w", err)
	}
	return doc.toEntity(), nil
}

func (a *JobAdapter) Create(ctx context.Context, job *domain.JobApplication) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := a.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if _, err := a.collection.InsertOne(ctx, toJobDocument(job)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return out.ErrDuplicate
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (a *JobAdapter) Update(ctx context.Context, userID, id string, patch *domain.JobPatch) (*domain.JobApplication, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc jobDocument
	err := a.collection.FindOneAndUpdate(ctx,
		bson.M{"id": id, "user_id": userID},
		patchUpdate(patch, a.now()),
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, out.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return doc.toEntity(), nil
}

func (a *JobAdapter) SoftDelete(ctx context.Context, userID, id string, at time.Time) error {
	res, err := a.collection.UpdateOne(ctx,
		bson.M{"id": id, "user_id": userID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": at, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Already deleted is fine; missing is not.
	n, err := a.collection.CountDocuments(ctx, bson.M{"id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n == 0 {
		return out.ErrNotFound
	}
	return nil
}

func (a *JobAdapter) ListActive(ctx context.Context, userID string) ([]*domain.JobApplication, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "applied_date", Value: -1},
		{Key: "created_at", Value: -1},
	})

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID, "deleted_at": nil}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}

	result := make([]*domain.JobApplication, len(docs))
	for i := range docs {
		result[i] = docs[i].toEntity()
	}
	return result, nil
}

var _ out.JobRepository = (*JobAdapter)(nil)
