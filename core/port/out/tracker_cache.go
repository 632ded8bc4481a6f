package out

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned by SyncLock.Acquire when another run holds the lock.
var ErrLockHeld = errors.New("lock held")

// SyncLock serialises sync runs per user.
type SyncLock interface {
	// Acquire returns a release func. ErrLockHeld when already locked.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (release func(), err error)
}

// OAuthStateStore keeps single-use OAuth state values.
type OAuthStateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume returns false for unknown, expired or already used states.
	Consume(ctx context.Context, state string) (bool, error)
}

// SessionBlacklist records revoked session ids until they expire.
type SessionBlacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
