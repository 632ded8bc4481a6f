// Package cache implements the short-lived coordination state (sync locks,
// OAuth states, revoked sessions) on Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"
)

const (
	syncLockKey    = "tracker:sync:lock:"
	oauthStateKey  = "tracker:oauth:state:"
	revokedSessKey = "tracker:session:revoked:"
)

// =============================================================================
// Sync Lock
// =============================================================================

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// SyncLock is a per-user Redis lock (SET NX PX).
type SyncLock struct {
	client *redis.Client
}

func NewSyncLock(client *redis.Client) *SyncLock {
	return &SyncLock{client: client}
}

func (l *SyncLock) Acquire(ctx context.Context, userID string, ttl time.Duration) (func(), error) {
	key := syncLockKey + userID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, out.ErrLockHeld
	}

	release := func() {
		// The request context may already be cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			logger.WithError(err).WithField("user_id", userID).Warn("failed to release sync lock")
		}
	}
	return release, nil
}

// =============================================================================
// OAuth State Store
// =============================================================================

type stateValue struct {
	IssuedAt time.Time `json:"issued_at"`
}

// OAuthStateStore keeps single-use OAuth states.
type OAuthStateStore struct {
	client *redis.Client
}

func NewOAuthStateStore(client *redis.Client) *OAuthStateStore {
	return &OAuthStateStore{client: client}
}

func (s *OAuthStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	data, err := json.Marshal(stateValue{IssuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, oauthStateKey+state, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store OAuth state: %w", err)
	}
	return nil
}

// Consume uses GETDEL so a state can be redeemed once.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	data, err := s.client.GetDel(ctx, oauthStateKey+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to validate OAuth state: %w", err)
	}

	var v stateValue
	if err := json.Unmarshal(data, &v); err != nil {
		return false, nil
	}
	return true, nil
}

// =============================================================================
// Session Blacklist
// =============================================================================

// SessionBlacklist records revoked session ids until their natural expiry.
type SessionBlacklist struct {
	client *redis.Client
}

func NewSessionBlacklist(client *redis.Client) *SessionBlacklist {
	return &SessionBlacklist{client: client}
}

func (b *SessionBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, revokedSessKey+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (b *SessionBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, revokedSessKey+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

var (
	_ out.SyncLock         = (*SyncLock)(nil)
	_ out.OAuthStateStore  = (*OAuthStateStore)(nil)
	_ out.SessionBlacklist = (*SessionBlacklist)(nil)
)
