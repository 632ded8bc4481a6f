package memory

import (
	"context"
	"sync"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

type CheckpointStore struct {
	mu  sync.RWMutex
	cps map[string]domain.SyncCheckpoint
	now func() time.Time
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{cps: make(map[string]domain.SyncCheckpoint), now: time.Now}
}

var _ out.CheckpointRepository = (*CheckpointStore)(nil)

func (s *CheckpointStore) Get(ctx context.Context, userID string) (*domain.SyncCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.cps[userID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (s *CheckpointStore) Advance(ctx context.Context, cp *domain.SyncCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	next := *cp
	next.UpdatedAt = now
	if prev, ok := s.cps[cp.UserID]; ok {
		next.CreatedAt = prev.CreatedAt
		if prev.LastSyncDate.After(next.LastSyncDate) {
			next.LastSyncDate = prev.LastSyncDate
		}
	} else {
		next.CreatedAt = now
	}
	s.cps[cp.UserID] = next
	return nil
}
