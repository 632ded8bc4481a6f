package out

import (
	"context"

	"tracker_server/core/domain"
)

// SnapshotRepository stores review queue entries, unique per (user, message).
type SnapshotRepository interface {
	// UpsertByMessage inserts or refreshes the snapshot for its message id.
	UpsertByMessage(ctx context.Context, snap *domain.EmailSnapshot) error

	GetByID(ctx context.Context, userID, id string) (*domain.EmailSnapshot, error)

	// ListByUser returns snapshots newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.EmailSnapshot, error)

	// LatestByThread returns the most recently created snapshot of a thread
	// or nil.
	LatestByThread(ctx context.Context, userID, threadID string) (*domain.EmailSnapshot, error)

	UpdateText(ctx context.Context, userID, id, subject, from, snippet string) error

	DeleteByID(ctx context.Context, userID, id string) error
	DeleteByMessage(ctx context.Context, userID, messageID string) error
}
