package memstore

import (
	"fmt"
	"sync"
	"time"

	"stillmotion/internal/core/domain"
)

// JobStore keeps jobs in memory in enqueue order. Every read returns a copy
// and every write replaces the whole record under the lock, so readers never
// observe a half-updated job.
type JobStore struct {
	mu    sync.RWMutex
	order []string
	jobs  map[string]domain.Job
	now   func() time.Time
}

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]domain.Job),
		now:  time.Now,
	}
}

// Add appends a job to the end of the queue.
func (s *JobStore) Add(job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = clone(job)
	s.order = append(s.order, job.ID)
	return nil
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return clone(job), nil
}

// List returns copies of all jobs in enqueue order.
func (s *JobStore) List() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.jobs[id]))
	}
	return out
}

// Update applies fn to a copy of the job and stores it if the status change,
// if any, is a legal transition.
func (s *JobStore) Update(id string, fn func(*domain.Job)) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	next := clone(current)
	fn(&next)
	next.ID = current.ID

	if next.Status != current.Status && !current.CanTransition(next.Status) {
		return clone(current), fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, next.Status)
	}
	next.UpdatedAt = s.now().UTC()
	s.jobs[id] = next
	return clone(next), nil
}

// Remove deletes a job. Processing jobs cannot be removed.
func (s *JobStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if job.Status == domain.StatusProcessing {
		return fmt.Errorf("%w: %s", domain.ErrJobInFlight, id)
	}
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes every job that is not processing.
func (s *JobStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		if s.jobs[id].Status == domain.StatusProcessing {
			kept = append(kept, id)
			continue
		}
		delete(s.jobs, id)
		removed++
	}
	s.order = kept
	return removed
}

func clone(job domain.Job) domain.Job {
	if job.Result != nil {
		r := *job.Result
		job.Result = &r
	}
	return job
}
