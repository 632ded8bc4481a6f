package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

const collectionCheckpoints = "sync_checkpoints"

// CheckpointAdapter implements out.CheckpointRepository using MongoDB.
type CheckpointAdapter struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewCheckpointAdapter creates a new MongoDB checkpoint adapter.
func NewCheckpointAdapter(db *mongo.Database) *CheckpointAdapter {
	return &CheckpointAdapter{
		collection: db.Collection(collectionCheckpoints),
		now:        time.Now,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *CheckpointAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type checkpointDocument struct {
	UserID          string             `bson:"user_id"`
	LastSyncDate    time.Time          `bson:"last_sync_date"`
	LastSyncSummary domain.SyncSummary `bson:"last_sync_summary"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func (a *CheckpointAdapter) Get(ctx context.Context, userID string) (*domain.SyncCheckpoint, error) {
	var doc checkpointDocument
	err := a.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &domain.SyncCheckpoint{
		UserID:          doc.UserID,
		LastSyncDate:    doc.LastSyncDate,
		LastSyncSummary: doc.LastSyncSummary,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

// Advance upserts the checkpoint; $max keeps last_sync_date monotonic.
func (a *CheckpointAdapter) Advance(ctx context.Context, cp *domain.SyncCheckpoint) error {
	now := a.now()
	update := bson.M{
		"$max": bson.M{"last_sync_date": cp.LastSyncDate.UTC()},
		"$set": bson.M{
			"last_sync_summary": cp.LastSyncSummary,
			"updated_at":        now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := a.collection.UpdateOne(ctx, bson.M{"user_id": cp.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	return nil
}

var _ out.CheckpointRepository = (*CheckpointAdapter)(nil)
