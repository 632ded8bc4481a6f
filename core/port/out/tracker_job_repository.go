package out

import (
	"context"
	"errors"
	"time"

	"tracker_server/core/domain"
)

// ErrNotFound is returned by Get/Update style calls when no record matches.
// Find style calls return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique key (user, thread) or
// (user, message) is already taken.
var ErrDuplicate = errors.New("duplicate record")

// JobRepository stores job applications. All calls are scoped to a user.
type JobRepository interface {
	GetByID(ctx context.Context, userID, id string) (*domain.JobApplication, error)

	// FindByThread returns the job bound to a thread. With includeDeleted the
	// live record is preferred and a soft-deleted one is returned only when no
	// live record exists.
	FindByThread(ctx context.Context, userID, threadID string, includeDeleted bool) (*domain.JobApplication, error)

	Create(ctx context.Context, job *domain.JobApplication) error
	Update(ctx context.Context, userID, id string, patch *domain.JobPatch) (*domain.JobApplication, error)
	SoftDelete(ctx context.Context, userID, id string, at time.Time) error

	// ListActive returns non-deleted jobs, newest applied date first.
	ListActive(ctx context.Context, userID string) ([]*domain.JobApplication, error)
}
