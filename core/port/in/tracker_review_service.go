package in

import (
	"context"

	"tracker_server/core/domain"
)

type ConfirmResult struct {
	SnapshotID  string           `json:"snapshot_id"`
	FinalIntent domain.IntentTag `json:"final_intent"`
	// JobID is empty when the snapshot was ignored.
	JobID string `json:"job_id,omitempty"`
}

// ReviewService resolves review queue entries.
type ReviewService interface {
	ListUnknown(ctx context.Context, userID string) ([]*domain.EmailSnapshot, error)
	Confirm(ctx context.Context, userID, snapshotID, finalIntent string) (*ConfirmResult, error)
}
