package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

type storedJob struct {
	job       jobModel.Job
	expiresAt time.Time
}

// InMemoryJobStore backs the job API when redis is offline. Entries expire after the same
// TTL the redis store uses; jobs are lost on restart.
type InMemoryJobStore struct {
	mu      sync.RWMutex
	jobs    map[string]storedJob
	ttl     time.Duration
	now     func() time.Time
	written int
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return NewInMemoryJobStore(config.RedisJobStoreTTL, time.Now)
}

func NewInMemoryJobStore(ttl time.Duration, now func() time.Time) *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs: make(map[string]storedJob),
		ttl:  ttl,
		now:  now,
	}
}

func (s *InMemoryJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.jobs[j.Id] = storedJob{job: j, expiresAt: now.Add(s.ttl)}
	s.written++
	// expired jobs are dropped every so often instead of on a timer
	if s.written%config.BufferLimit == 0 {
		s.purge(now)
	}
	inMemLogger.WithTrace(ctx).Debug("Saved job to store", "jobId", j.Id, "status", j.Status)
	return nil
}

func (s *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	s.mu.RLock()
	entry, found := s.jobs[jobId]
	s.mu.RUnlock()

	if found && s.now().After(entry.expiresAt) {
		found = false
	}
	inMemLogger.WithTrace(ctx).Debug("Job lookup", "jobId", jobId, "found", found)
	if !found {
		return jobModel.Job{}, false
	}
	return entry.job, true
}

func (s *InMemoryJobStore) DeleteJob(_ context.Context, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

func (s *InMemoryJobStore) purge(now time.Time) {
	for id, entry := range s.jobs {
		if now.After(entry.expiresAt) {
			delete(s.jobs, id)
		}
	}
}

func (s *InMemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
