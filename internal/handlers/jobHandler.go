package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/job"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}
		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})
}

// CreateNewJob queues an ingest job. It reports false when ctx ends before the queue has room.
func CreateNewJob(ctx context.Context, newJob newJobData) bool {
	if handlerInstance == nil {
		return false
	}
	logJH.WithTrace(ctx).Info("Creating new job", "jobId", newJob.id, "sourceDocId", newJob.sourceDocId)
	return handlerInstance.service.Submit(ctx, toIngestJob(newJob)) == nil
}

func GetJobStatus(ctx context.Context, id string) (result jobModel.Job, isFound bool) {
	if handlerInstance != nil {
		return handlerInstance.service.Lookup(ctx, id)
	}
	return result, false
}

func toIngestJob(newJob newJobData) jobModel.Job {
	return jobModel.Job{
		Id:          newJob.id,
		CreatedTime: time.Now(),
		TraceId:     newJob.traceId,
		CurrentStep: jobModel.IngestInit,
		JobType:     jobModel.JobTypeIngest,
		JobPayload: jobModel.JobPayload{
			IngestFileName: newJob.documentName,
			IngestURL:      newJob.documentSource,
			SourceDocId:    newJob.sourceDocId,
			JournalName:    newJob.journalName,
			Year:           newJob.year,
		},
	}
}
