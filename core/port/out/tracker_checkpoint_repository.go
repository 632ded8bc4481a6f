package out

import (
	"context"

	"tracker_server/core/domain"
)

// CheckpointRepository stores one sync checkpoint per user.
type CheckpointRepository interface {
	// Get returns nil when the user never synced.
	Get(ctx context.Context, userID string) (*domain.SyncCheckpoint, error)

	// Advance upserts the checkpoint. LastSyncDate never moves backwards.
	Advance(ctx context.Context, cp *domain.SyncCheckpoint) error
}
