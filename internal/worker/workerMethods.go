package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	jobmodel "github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctx, cancel := context.WithTimeout(logger_i.ContextWithTrace(context.Background(), job.TraceId), jobTimeout)
	defer cancel()
	log := logger.WithTrace(ctx).With("jobId", job.Id)
	log.Debug("Processing job")

	job = saveJobState(ctx, job, jobmodel.JobStatusRunning)

	switch job.JobType {
	case jobmodel.JobTypeIngest:
		job.CurrentStep = jobmodel.IngestProcessing
		job = ingestDocument(ctx, job, log)
	default:
		log.Warn("unknown job type", "jobType", job.JobType)
		job.Error = jobmodel.JobError{Code: http.StatusBadRequest, Message: "unknown job type"}
		job.Status = jobmodel.JobStatusError
		job.CurrentStep = jobmodel.Error
	}

	job.EndTime = time.Now()
	final := jobmodel.JobStatusComplete
	if job.Status == jobmodel.JobStatusError {
		final = jobmodel.JobStatusError
	}
	job = saveJobState(ctx, job, final)
	log.Debug("Job finished", "status", job.Status, "elapsed", time.Since(start))
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()
}

func ingestDocument(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) jobmodel.Job {
	done := _ingestor.IngestDocument(ctx, job)
	if done.Status == jobmodel.JobStatusError {
		log.Error("Ingest failed", "code", done.Error.Code, "step", done.CurrentStep)
	}
	return done
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) jobmodel.Job {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.WithTrace(ctx).Error("Failed to update job state", "jobId", job.Id, "err", err)
	}
	return job
}
