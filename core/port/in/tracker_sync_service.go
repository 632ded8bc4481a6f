// Package in defines inbound ports (driving ports) for the application.
package in

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"tracker_server/core/domain"
)

// SyncRequest describes one sync run.
type SyncRequest struct {
	UserID     string
	Credential *oauth2.Token
	MaxResults int
	// Since bounds the candidate listing. Ignored when UseCheckpoint is set
	// and a checkpoint exists.
	Since         *time.Time
	UseCheckpoint bool
}

type SyncResult struct {
	SyncedAt   time.Time          `json:"synced_at"`
	Candidates int                `json:"candidates"`
	Summary    domain.SyncSummary `json:"summary"`
}

// SyncService reconciles a user's recent mail into job applications.
type SyncService interface {
	RunSync(ctx context.Context, req *SyncRequest) (*SyncResult, error)
	Status(ctx context.Context, userID string) (*domain.SyncCheckpoint, error)
}
