// Package memory provides in-process implementations of the outbound ports.
// Used when no external store is configured and throughout the tests.
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

type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.JobApplication
	now  func() time.Time
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.JobApplication), now: time.Now}
}

var _ out.JobRepository = (*JobStore)(nil)

func cloneJob(j *domain.JobApplication) *domain.JobApplication {
	c := *j
	if j.DeletedAt != nil {
		t := *j.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func (s *JobStore) GetByID(ctx context.Context, userID, id string) (*domain.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok || j.UserID != userID {
		return nil, out.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *JobStore) FindByThread(ctx context.Context, userID, threadID string, includeDeleted bool) (*domain.JobApplication, error) {
	if threadID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var deleted *domain.JobApplication
	for _, j := range s.jobs {
		if j.UserID != userID || j.EmailThreadID != threadID {
			continue
		}
		if !j.IsDeleted() {
			return cloneJob(j), nil
		}
		if deleted == nil || j.DeletedAt.After(*deleted.DeletedAt) {
			deleted = j
		}
	}
	if includeDeleted && deleted != nil {
		return cloneJob(deleted), nil
	}
	return nil, nil
}

func (s *JobStore) Create(ctx context.Context, job *domain.JobApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.EmailThreadID != "" {
		for _, j := range s.jobs {
			if j.UserID == job.UserID && j.EmailThreadID == job.EmailThreadID {
				return out.ErrDuplicate
			}
		}
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *JobStore) Update(ctx context.Context, userID, id string, patch *domain.JobPatch) (*domain.JobApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.UserID != userID {
		return nil, out.ErrNotFound
	}
	updated := patch.Apply(*cloneJob(j), s.now())
	s.jobs[id] = &updated
	return cloneJob(&updated), nil
}

func (s *JobStore) SoftDelete(ctx context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.UserID != userID {
		return out.ErrNotFound
	}
	if j.DeletedAt == nil {
		j.DeletedAt = &at
		j.UpdatedAt = at
	}
	return nil
}

func (s *JobStore) ListActive(ctx context.Context, userID string) ([]*domain.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.JobApplication, 0)
	for _, j := range s.jobs {
		if j.UserID == userID && !j.IsDeleted() {
			result = append(result, cloneJob(j))
		}
	}
	sort.Slice(result, func(a, b int) bool {
		if result[a].AppliedDate.Equal(result[b].AppliedDate) {
			return result[a].CreatedAt.After(result[b].CreatedAt)
		}
		return result[a].AppliedDate.After(result[b].AppliedDate)
	})
	return result, nil
}
