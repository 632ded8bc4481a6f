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
// MongoDB Email Snapshot Adapter
// =============================================================================

const collectionSnapshots = "email_snapshots"

// SnapshotAdapter implements out.SnapshotRepository using MongoDB.
type SnapshotAdapter struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewSnapshotAdapter creates a new MongoDB snapshot adapter.
func NewSnapshotAdapter(db *mongo.Database) *SnapshotAdapter {
	return &SnapshotAdapter{
		collection: db.Collection(collectionSnapshots),
		now:        time.Now,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *SnapshotAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "email_message_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "email_thread_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type snapshotDocument struct {
	ID             string    `bson:"id"`
	UserID         string    `bson:"user_id"`
	EmailMessageID string    `bson:"email_message_id"`
	EmailThreadID  string    `bson:"email_thread_id"`
	Subject        string    `bson:"subject"`
	From           string    `bson:"from"`
	Snippet        string    `bson:"snippet"`
	EmailDate      time.Time `bson:"email_date"`
	Intent         string    `bson:"intent"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d *snapshotDocument) toEntity() *domain.EmailSnapshot {
	return &domain.EmailSnapshot{
		ID:             d.ID,
		UserID:         d.UserID,
		EmailMessageID: d.EmailMessageID,
		EmailThreadID:  d.EmailThreadID,
		Subject:        d.Subject,
		From:           d.From,
		Snippet:        d.Snippet,
		EmailDate:      d.EmailDate,
		Intent:         domain.IntentTag(d.Intent),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// newest first; _id breaks ties in insertion order.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// =============================================================================
// Operations
// =============================================================================

func (a *SnapshotAdapter) UpsertByMessage(ctx context.Context, snap *domain.EmailSnapshot) error {
	now := a.now()
	filter := bson.M{"user_id": snap.UserID, "email_message_id": snap.EmailMessageID}
	newID := snap.ID
	if newID == "" {
		newID = uuid.NewString()
	}
	update := bson.M{
		"$set": bson.M{
			"email_thread_id": snap.EmailThreadID,
			"subject":         snap.Subject,
			"from":            snap.From,
			"snippet":         snap.Snippet,
			"email_date":      snap.EmailDate.UTC(),
			"intent":          string(snap.Intent),
			"updated_at":      now,
		},
		"$setOnInsert": bson.M{
			"id":         newID,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc snapshotDocument
	err := a.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Concurrent upsert on the same message; the second attempt matches.
		err = a.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	snap.ID = doc.ID
	snap.CreatedAt = doc.CreatedAt
	snap.UpdatedAt = doc.UpdatedAt
	return nil
}

func (a *SnapshotAdapter) GetByID(ctx context.Context, userID, id string) (*domain.EmailSnapshot, error) {
	var doc snapshotDocument
	err := a.collection.FindOne(ctx, bson.M{"id": id, "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, out.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return doc.toEntity(), nil
}

func (a *SnapshotAdapter) ListByUser(ctx context.Context, userID string) ([]*domain.EmailSnapshot, error) {
	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []snapshotDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshots: %w", err)
	}

	result := make([]*domain.EmailSnapshot, len(docs))
	for i := range docs {
		result[i] = docs[i].toEntity()
	}
	return result, nil
}

func (a *SnapshotAdapter) LatestByThread(ctx context.Context, userID, threadID string) (*domain.EmailSnapshot, error) {
	var doc snapshotDocument
	err := a.collection.FindOne(ctx,
		bson.M{"user_id": userID, "email_thread_id": threadID},
		options.FindOne().SetSort(newestFirst),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return doc.toEntity(), nil
}

func (a *SnapshotAdapter) UpdateText(ctx context.Context, userID, id, subject, from, snippet string) error {
	res, err := a.collection.UpdateOne(ctx,
		bson.M{"id": id, "user_id": userID},
		bson.M{"$set": bson.M{
			"subject":    subject,
			"from":       from,
			"snippet":    snippet,
			"updated_at": a.now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	if res.MatchedCount == 0 {
		return out.ErrNotFound
	}
	return nil
}

func (a *SnapshotAdapter) DeleteByID(ctx context.Context, userID, id string) error {
	res, err := a.collection.DeleteOne(ctx, bson.M{"id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if res.DeletedCount == 0 {
		return out.ErrNotFound
	}
	return nil
}

func (a *SnapshotAdapter) DeleteByMessage(ctx context.Context, userID, messageID string) error {
	if _, err := a.collection.DeleteOne(ctx, bson.M{"user_id": userID, "email_message_id": messageID}); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

var _ out.SnapshotRepository = (*SnapshotAdapter)(nil)
