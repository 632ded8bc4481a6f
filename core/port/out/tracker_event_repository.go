package out

import (
	"context"

	"tracker_server/core/domain"
)

// EventRepository stores the application event trail.
type EventRepository interface {
	Record(ctx context.Context, ev *domain.ApplicationEvent) error

	// ListByJob returns events oldest first.
	ListByJob(ctx context.Context, userID, jobID string) ([]*domain.ApplicationEvent, error)
}
