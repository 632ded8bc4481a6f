package memory

import (
	"context"
	"sync"
	"time"

	"tracker_server/core/port/out"
)

// expiringSet is a TTL keyed set.
type expiringSet struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func newExpiringSet() *expiringSet {
	return &expiringSet{items: make(map[string]time.Time), now: time.Now}
}

// add stores key unless a live entry exists. Returns false when present.
func (s *expiringSet) add(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.items[key]; ok && now.Before(exp) {
		return false
	}
	s.items[key] = now.Add(ttl)
	return true
}

func (s *expiringSet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.items[key]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.items, key)
		return false
	}
	return true
}

// take removes key and reports whether it was live.
func (s *expiringSet) take(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.items[key]
	delete(s.items, key)
	return ok && s.now().Before(exp)
}

// SyncLock is a process-local per-user lock.
type SyncLock struct{ set *expiringSet }

func NewSyncLock() *SyncLock { return &SyncLock{set: newExpiringSet()} }

var _ out.SyncLock = (*SyncLock)(nil)

func (l *SyncLock) Acquire(ctx context.Context, userID string, ttl time.Duration) (func(), error) {
	if !l.set.add(userID, ttl) {
		return nil, out.ErrLockHeld
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.set.take(userID) })
	}, nil
}

type OAuthStateStore struct{ set *expiringSet }

func NewOAuthStateStore() *OAuthStateStore { return &OAuthStateStore{set: newExpiringSet()} }

var _ out.OAuthStateStore = (*OAuthStateStore)(nil)

func (s *OAuthStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	s.set.add(state, ttl)
	return nil
}

func (s *OAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	return s.set.take(state), nil
}

type SessionBlacklist struct{ set *expiringSet }

func NewSessionBlacklist() *SessionBlacklist { return &SessionBlacklist{set: newExpiringSet()} }

var _ out.SessionBlacklist = (*SessionBlacklist)(nil)

func (b *SessionBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	b.set.add(jti, ttl)
	return nil
}

func (b *SessionBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return b.set.has(jti), nil
}
