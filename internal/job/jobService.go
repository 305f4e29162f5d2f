// Package job owns the ingest queue: the buffered job channel the worker pool drains,
// the dispatcher signal that grows the pool and the store that answers status lookups.
package job

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

var ErrQueueFull = errors.New("job queue is full")

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

var logger = logger_i.NewLogger("JobService")

func InitJobService(cfg ServiceConfig) *Service {
	logger = logger_i.NewLogger("JobService")
	return &Service{
		JobChannel:        cfg.JobChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
	}
}

// Submit records j as queued and hands it to the worker pool. It returns ErrQueueFull when
// ctx ends before the channel has room; the stored job is removed again in that case.
func (s *Service) Submit(ctx context.Context, j jobModel.Job) error {
	log := logger.WithTrace(ctx).With("jobId", j.Id)

	j.Status = jobModel.JobStatusQueued
	// saved first so a status lookup never 404s a job that was just accepted
	if err := s.JobStore.SaveJob(ctx, j); err != nil {
		log.Error("Could not save queued job", "error", err)
	}

	select {
	case s.JobChannel <- j:
	case <-ctx.Done():
		log.Warn("Job not queued, request ended first", "error", ctx.Err())
		s.JobStore.DeleteJob(context.WithoutCancel(ctx), j.Id)
		return ErrQueueFull
	}
	metrics.IncrementJobsInQueue()
	log.Info("Job queued", "type", j.JobType)

	s.requestWorker(j, log)
	return nil
}

func (s *Service) Lookup(ctx context.Context, id string) (jobModel.Job, bool) {
	return s.JobStore.GetJob(ctx, id)
}

// requestWorker asks the dispatcher for capacity. File ingests are long running so each one
// asks; other jobs ask every RequestsPerNewWorkerCount submissions. Idle workers retire on their own.
func (s *Service) requestWorker(j jobModel.Job, log *logger_i.Logger) {
	count := atomic.AddInt64(&s.RequestCount, 1)
	if j.JobType != jobModel.JobTypeIngest && count%config.RequestsPerNewWorkerCount != 0 {
		return
	}
	select {
	case s.DispatcherChannel <- true:
		metrics.StartDispatcherSignalCount()
	default:
		log.Debug("Dispatcher busy, signal skipped", "requestCount", count)
	}
}
