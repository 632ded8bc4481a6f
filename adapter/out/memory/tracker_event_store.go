package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

type EventStore struct {
	mu     sync.RWMutex
	events []domain.ApplicationEvent
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

var _ out.EventRepository = (*EventStore)(nil)

func (s *EventStore) Record(ctx context.Context, ev *domain.ApplicationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	s.events = append(s.events, *ev)
	return nil
}

func (s *EventStore) ListByJob(ctx context.Context, userID, jobID string) ([]*domain.ApplicationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ApplicationEvent, 0)
	for i := range s.events {
		ev := s.events[i]
		if ev.UserID == userID && ev.JobApplicationID == jobID {
			result = append(result, &ev)
		}
	}
	return result, nil
}
