package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/job"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

// DocumentIngestor runs one ingest job to completion and returns its final state.
type DocumentIngestor interface {
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

var (
	_jobService        *job.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	logger             = logger_i.NewLogger("WorkerPool")
	_ingestor          DocumentIngestor
	minWorkerCount     = config.MinWorkerCount
	idleTimeout        = config.IdleWorkerTimeout
	jobTimeout         = config.JobTimeout
)

func InitServices(jobService *job.Service, ingestor DocumentIngestor) {
	_jobService = jobService
	_ingestor = ingestor
	dispatcherChannel = jobService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool")
	go dispatcher(dispatcherChannel, stopWorkerChannel, _jobService.JobChannel)
}

// dispatcher grows the pool on demand up to MaxWorkerCount and exits once the pool is stopped.
func dispatcher(signals <-chan bool, stop <-chan bool, queue chan jobModel.Job) {
	createWorker()
	logger.Info("Dispatcher started")
	for {
		select {
		case _, ok := <-signals:
			if !ok {
				return
			}
			count := atomic.LoadInt64(&currentWorkerCount)
			if count >= config.MaxWorkerCount {
				logger.Debug("Worker pool at capacity", "workerCount", count, "queued", len(queue))
				continue
			}
			logger.Info("Creating new worker", "workerCount", count, "queued", len(queue))
			createWorker()
		case <-stop:
			logger.Info("Dispatcher stopped")
			return
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	atomic.AddInt64(&currentWorkerCount, 1)
	go worker()
	metrics.IncrementActiveWorkerCount()
	logger.Info("Created new worker")
}

func worker() {
	for {
		select {
		case currentJob := <-_jobService.JobChannel:
			executeJob(currentJob)
			metrics.DecrementJobsInQueue()

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")
			return

		case <-time.After(idleTimeout):
			// idle workers retire down to the floor
			if atomic.LoadInt64(&currentWorkerCount) > atomic.LoadInt64(&minWorkerCount) {
				removeWorker("Idle worker timeout")
				return
			}
		}
	}
}
