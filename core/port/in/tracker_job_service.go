package in

import (
	"context"
	"time"

	"tracker_server/core/domain"
)

type CreateJobRequest struct {
	Company        domain.Entity
	Role           domain.Entity
	Source         domain.JobSource
	AppliedDate    time.Time
	CurrentStatus  domain.JobStatus
	JobDescription string
}

// UpdateJobRequest carries user edits. Nil fields are untouched.
type UpdateJobRequest struct {
	Company        *domain.Entity
	Role           *domain.Entity
	CurrentStatus  *domain.JobStatus
	JobDescription *string
}

// JobService is the user-facing job board.
type JobService interface {
	List(ctx context.Context, userID string) ([]*domain.JobApplication, error)
	Create(ctx context.Context, userID string, req *CreateJobRequest) (*domain.JobApplication, error)
	Update(ctx context.Context, userID, jobID string, req *UpdateJobRequest) (*domain.JobApplication, error)
	Delete(ctx context.Context, userID, jobID string) error
	Stats(ctx context.Context, userID string) (*domain.JobStats, error)
	Timeline(ctx context.Context, userID, jobID string) ([]*domain.ApplicationEvent, error)

	// PreviewByThread returns nil when the thread has no snapshot.
	PreviewByThread(ctx context.Context, userID, threadID string) (*domain.EmailSnapshot, error)
}
