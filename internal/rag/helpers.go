package rag

import (
	"context"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

const (
	healthTimeout = 3 * time.Second
	logTimeout    = 2 * time.Second
)

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("IngestDocument", "currentStep", job.CurrentStep)
	return job
}

// jobError records a safe message on the job; the cause only goes to the log.
func (s *service) jobError(ctx context.Context, job jobModel.Job, err error, message string) jobModel.Job {
	s.logger.WithTrace(ctx).Error(message, "jobId", job.Id, "error", err)

	code, msg, retry := ragErrors.HTTPStatus(err)
	job.Error = jobModel.JobError{
		Code:    code,
		Message: msg,
		Retry:   retry,
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// logSearch is best effort; a ledger hiccup never fails a search that already has results.
func (s *service) logSearch(ctx context.Context, q commonModels.SearchQuery, resp commonModels.SearchResponse) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logTimeout)
	defer cancel()
	entry := commonModels.SearchLog{
		Query:        q.Query,
		K:            q.K,
		MinScore:     q.MinScore,
		ResultCount:  len(resp.Results),
		SearchTimeMs: float64(resp.SearchTime.Microseconds()) / 1000,
		Generated:    resp.Answer != nil,
	}
	if err := s.ledger.LogSearch(lctx, entry); err != nil {
		s.logger.WithTrace(ctx).Warn("search not logged", "error", err)
	}
}
