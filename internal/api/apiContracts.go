package api

import (
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type IngestResult struct {
	SourceDocId string          `json:"source_doc_id" example:"doc_42"`
	FileName    string          `json:"file_name" example:"paper.pdf"`
	Upload      *UploadResponse `json:"upload,omitempty"`
}

type Result struct {
	Status string        `json:"status"`
	Step   string        `json:"step,omitempty"`
	Ingest *IngestResult `json:"ingest,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type UploadResponse struct {
	AcceptedCount    int                          `json:"accepted_count" example:"2"`
	RejectedCount    int                          `json:"rejected_count" example:"0"`
	NotEmbeddedCount int                          `json:"not_embedded_count" example:"0"`
	Accepted         []string                     `json:"accepted"`
	Rejected         []commonModels.RejectedChunk `json:"rejected"`
	NotEmbedded      []string                     `json:"not_embedded,omitempty"`
}

// SearchResponse reports search_time in seconds.
type SearchResponse struct {
	Results    []commonModels.SearchResult   `json:"results"`
	Count      int                           `json:"count" example:"1"`
	SearchTime float64                       `json:"search_time" example:"0.042"`
	Answer     *commonModels.GeneratedAnswer `json:"answer,omitempty"`
}

// requests---------------------

type UploadRequest struct {
	SchemaVersion string                  `json:"schema_version" example:"1.0"`
	Chunks        []commonModels.RawChunk `json:"chunks"`
}

type SearchRequest struct {
	Query          string  `json:"query" validate:"required" example:"transformer attention in protein folding"`
	K              int     `json:"k,omitempty" example:"10"`
	MinScore       float64 `json:"min_score,omitempty" example:"0.5"`
	Journal        string  `json:"journal,omitempty" example:"Nature"`
	YearFrom       int     `json:"year_from,omitempty" example:"2015"`
	YearTo         int     `json:"year_to,omitempty" example:"2024"`
	GenerateAnswer bool    `json:"generate_answer,omitempty"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}
