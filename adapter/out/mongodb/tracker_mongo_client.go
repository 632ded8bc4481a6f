// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewClient creates a new MongoDB client.
func NewClient(ctx context.Context, url string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// Store bundles the repositories backed by one database.
type Store struct {
	Jobs        *JobAdapter
	Snapshots   *SnapshotAdapter
	Checkpoints *CheckpointAdapter
	Events      *EventAdapter
}

// NewStore creates all adapters for db.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		Jobs:        NewJobAdapter(db),
		Snapshots:   NewSnapshotAdapter(db),
		Checkpoints: NewCheckpointAdapter(db),
		Events:      NewEventAdapter(db),
	}
}

// EnsureIndexes creates the indexes of every collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{collectionJobs, s.Jobs.EnsureIndexes},
		{collectionSnapshots, s.Snapshots.EnsureIndexes},
		{collectionCheckpoints, s.Checkpoints.EnsureIndexes},
		{collectionEvents, s.Events.EnsureIndexes},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("failed to ensure indexes on %s: %w", step.name, err)
		}
	}
	return nil
}
