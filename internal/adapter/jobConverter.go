package adapter

import (
	"fmt"

	"github.com/akolanti/JournalRAG/internal/api"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	return api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result: api.Result{
			Status: string(job.Status),
			Step:   string(job.CurrentStep),
			Ingest: toIngestResult(job.JobPayload),
		},
	}
}

func toIngestResult(p jobModel.JobPayload) *api.IngestResult {
	if p.SourceDocId == "" && p.IngestFileName == "" {
		return nil
	}
	res := &api.IngestResult{
		SourceDocId: p.SourceDocId,
		FileName:    p.IngestFileName,
	}
	if p.Result != nil {
		upload := ToUploadResponse(*p.Result)
		res.Upload = &upload
	}
	return res
}

// ErrorBody is the body every handler writes on failure.
func ErrorBody(code int, message string, retry bool) api.JobOutgoingError {
	return api.JobOutgoingError{
		Code:    code,
		Message: message,
		Retry:   retry,
	}
}
