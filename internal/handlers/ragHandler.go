package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/akolanti/JournalRAG/internal/adapter"
	"github.com/akolanti/JournalRAG/internal/adapter/utils"
	"github.com/akolanti/JournalRAG/internal/api"
	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/rag"
)

const (
	maxUploadBodySize = 64 << 20
	maxSearchBodySize = 1 << 20
)

var ragService rag.Service

func InitRagHandler(svc rag.Service) {
	ragService = svc
}

// UploadHandler godoc
// @Summary      Upload pre-chunked records
// @Description  Validates, embeds and stores a batch of chunk records. Invalid records are reported per index and do not fail the batch. Re-uploading a chunk_id overwrites it without touching its usage count.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      api.UploadRequest     true  "Schema version and chunk records"
// @Success      200      {object}  api.UploadResponse    "Per-record outcome"
// @Failure      400      {object}  api.JobOutgoingError  "Malformed body, unsupported schema version or too many chunks"
// @Failure      500      {object}  api.JobOutgoingError  "Storage failure, safe to resubmit"
// @Router       /api/upload [put]
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	var req api.UploadRequest
	if !decodeBody(w, r, maxUploadBodySize, &req) {
		return
	}
	res, err := ragService.Upload(r.Context(), adapter.ToUploadBatch(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToUploadResponse(res))
}

// SimilaritySearchHandler godoc
// @Summary      Similarity search
// @Description  Returns up to k chunks with similarity_score >= min_score, best first. With generate_answer the response also carries a cited answer; a failed generation still returns the results.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      api.SearchRequest     true  "Query and filters"
// @Success      200      {object}  api.SearchResponse    "Ranked results"
// @Failure      400      {object}  api.JobOutgoingError  "Invalid query parameters"
// @Failure      503      {object}  api.JobOutgoingError  "Embedding provider unavailable"
// @Router       /api/similarity_search [post]
func SimilaritySearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	var req api.SearchRequest
	if !decodeBody(w, r, maxSearchBodySize, &req) {
		return
	}
	if req.K > config.MaxK {
		writeServiceError(w, r, ragErrors.Validation("k", fmt.Sprintf("must be <= %d", config.MaxK)))
		return
	}
	resp, err := ragService.Search(r.Context(), adapter.ToSearchQuery(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(resp))
}

// GetDocumentHandler godoc
// @Summary      Get a document
// @Description  Document title and metadata, its chunks ordered by chunk_index and usage stats. Each call counts toward the document's access_count.
// @Tags         Documents
// @Produce      json
// @Param        journal_id  path      string  true  "source_doc_id"
// @Success      200         {object}  commonModels.DocumentView
// @Failure      404         {object}  api.JobOutgoingError  "Unknown document"
// @Router       /api/{journal_id} [get]
func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	doc, err := ragService.GetDocument(r.Context(), utils.GetChiURLParam(r, "journal_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, doc)
}

// DocumentStatsHandler godoc
// @Summary      Document usage stats
// @Description  Aggregated at read time over the document's chunks, including per-chunk usage rows.
// @Tags         Documents
// @Produce      json
// @Param        journal_id  path      string  true  "source_doc_id"
// @Success      200         {object}  commonModels.DocumentStats
// @Failure      404         {object}  api.JobOutgoingError  "Unknown document"
// @Router       /api/{journal_id}/stats [get]
func DocumentStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	stats, err := ragService.DocumentStats(r.Context(), utils.GetChiURLParam(r, "journal_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, stats)
}

// SearchStatsHandler godoc
// @Summary      Search statistics
// @Tags         Search
// @Produce      json
// @Success      200  {object}  commonModels.SearchStats
// @Router       /api/search_stats [get]
func SearchStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	stats, err := ragService.SearchStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, stats)
}

// HealthHandler godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  commonModels.HealthReport
// @Failure      503  {object}  commonModels.HealthReport
// @Router       /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	report := ragService.Health(r.Context())
	code := http.StatusOK
	if report.Status != commonModels.HealthOK {
		code = http.StatusServiceUnavailable
	}
	writeJsonResponse(w, code, report)
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		logRH.WithTrace(r.Context()).Warn("Bad request body", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
		return false
	}
	return true
}
