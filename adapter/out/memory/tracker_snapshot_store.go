package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

type snapshotEntry struct {
	snap domain.EmailSnapshot
	seq  int64
}

type SnapshotStore struct {
	mu    sync.RWMutex
	byID  map[string]*snapshotEntry
	byMsg map[string]string // user|message -> id
	seq   int64
	now   func() time.Time
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byID:  make(map[string]*snapshotEntry),
		byMsg: make(map[string]string),
		now:   time.Now,
	}
}

var _ out.SnapshotRepository = (*SnapshotStore)(nil)

func msgKey(userID, messageID string) string { return userID + "|" + messageID }

func (s *SnapshotStore) UpsertByMessage(ctx context.Context, snap *domain.EmailSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := msgKey(snap.UserID, snap.EmailMessageID)
	if id, ok := s.byMsg[key]; ok {
		e := s.byID[id]
		snap.ID = e.snap.ID
		snap.CreatedAt = e.snap.CreatedAt
		snap.UpdatedAt = now
		e.snap = *snap
		return nil
	}

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	snap.CreatedAt = now
	snap.UpdatedAt = now
	s.seq++
	s.byID[snap.ID] = &snapshotEntry{snap: *snap, seq: s.seq}
	s.byMsg[key] = snap.ID
	return nil
}

func (s *SnapshotStore) GetByID(ctx context.Context, userID, id string) (*domain.EmailSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok || e.snap.UserID != userID {
		return nil, out.ErrNotFound
	}
	snap := e.snap
	return &snap, nil
}

// sorted returns the user's entries newest first.
func (s *SnapshotStore) sorted(userID string, keep func(*domain.EmailSnapshot) bool) []*snapshotEntry {
	entries := make([]*snapshotEntry, 0)
	for _, e := range s.byID {
		if e.snap.UserID == userID && (keep == nil || keep(&e.snap)) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].snap.CreatedAt.Equal(entries[b].snap.CreatedAt) {
			return entries[a].seq > entries[b].seq
		}
		return entries[a].snap.CreatedAt.After(entries[b].snap.CreatedAt)
	})
	return entries
}

func (s *SnapshotStore) ListByUser(ctx context.Context, userID string) ([]*domain.EmailSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sorted(userID, nil)
	result := make([]*domain.EmailSnapshot, len(entries))
	for i, e := range entries {
		snap := e.snap
		result[i] = &snap
	}
	return result, nil
}

func (s *SnapshotStore) LatestByThread(ctx context.Context, userID, threadID string) (*domain.EmailSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sorted(userID, func(snap *domain.EmailSnapshot) bool {
		return snap.EmailThreadID == threadID
	})
	if len(entries) == 0 {
		return nil, nil
	}
	snap := entries[0].snap
	return &snap, nil
}

func (s *SnapshotStore) UpdateText(ctx context.Context, userID, id, subject, from, snippet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok || e.snap.UserID != userID {
		return out.ErrNotFound
	}
	e.snap.Subject = subject
	e.snap.From = from
	e.snap.Snippet = snippet
	e.snap.UpdatedAt = s.now()
	return nil
}

func (s *SnapshotStore) DeleteByID(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok || e.snap.UserID != userID {
		return out.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byMsg, msgKey(userID, e.snap.EmailMessageID))
	return nil
}

func (s *SnapshotStore) DeleteByMessage(ctx context.Context, userID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := msgKey(userID, messageID)
	if id, ok := s.byMsg[key]; ok {
		delete(s.byID, id)
		delete(s.byMsg, key)
	}
	return nil
}
