package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/JournalRAG/internal/adapter"
	"github.com/akolanti/JournalRAG/internal/adapter/utils"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

const (
	maxIngestFileSize = 32 << 20 //32mb
	queueWaitTimeout  = 2 * time.Second
)

// multipartMemory is how much of a form is held in memory before parts spill to temp files.
var multipartMemory int64 = 8 << 20

var logRH = logger_i.NewLogger("RequestHandler")

type newJobData struct {
	id             string
	traceId        string
	documentName   string
	documentSource string
	sourceDocId    string
	journalName    string
	year           int
}

// GetStatusHandler godoc
// @Summary      Get ingest job status
// @Description  Retrieves the current status of a file ingest job, including the upload summary once it has finished.
// @Tags         Ingestion
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse       "Current state of the job"
// @Failure      404  {object}  api.JobOutgoingError  "Job not found"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	logRH.WithTrace(r.Context()).Debug("Get Status Request", "jobId", idString)

	if idString == "" {
		WriteErrorResponse(w, http.StatusNotFound, "Job not found")
		return
	}
	result, isFound := GetJobStatus(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler handles the uploading of PDF, DOCX or TXT documents for ingestion.
// @Summary      Upload a document for ingestion
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, and queues an ingestion job. Chunks get ids "<source_doc_id>-00000", "<source_doc_id>-00001", ...
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        source_doc_id  formData  string  true   "Document id the chunks will belong to"
// @Param        journal_name   formData  string  false  "Journal name"
// @Param        year           formData  int     false  "Publication year"
// @Param        document       formData  file    true   "The PDF, DOCX or TXT file to upload"
// @Success      202  {object}  api.InitJobResponse   "Accepted - returns job id and status url"
// @Failure      400  {object}  api.JobOutgoingError  "Bad Request - Missing fields or file too large"
// @Failure      500  {object}  api.JobOutgoingError  "Internal Server Error - Storage or Write Error"
// @Failure      503  {object}  api.JobOutgoingError  "Job queue is full"
// @Router       /api/ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	log := logRH.WithTrace(r.Context())

	targetDir, err := getTargetDirectory()
	if err != nil {
		log.Error("Couldn't get target directory", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIngestFileSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "File too large or bad request")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sourceDocId := strings.TrimSpace(r.FormValue("source_doc_id"))
	if sourceDocId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "source_doc_id is required")
		return
	}
	if strings.Contains(sourceDocId, "]") {
		WriteErrorResponse(w, http.StatusBadRequest, "source_doc_id must not contain ']'")
		return
	}
	year := 0
	if v := strings.TrimSpace(r.FormValue("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "year must be an integer")
			return
		}
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(fileMetadata.Filename))
	tempFilePath := filepath.Join(targetDir, filename)
	if err := saveUpload(tempFilePath, fileReader); err != nil {
		log.Error("Couldn't store upload", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}

	newJob := newJobData{
		id:             utils.GetNewUUID(),
		traceId:        traceOf(r),
		documentName:   fileMetadata.Filename,
		documentSource: tempFilePath,
		sourceDocId:    sourceDocId,
		journalName:    strings.TrimSpace(r.FormValue("journal_name")),
		year:           year,
	}
	qctx, cancel := context.WithTimeout(r.Context(), queueWaitTimeout)
	defer cancel()
	if !CreateNewJob(qctx, newJob) {
		_ = os.Remove(tempFilePath)
		writeJsonResponse(w, http.StatusServiceUnavailable, adapter.ErrorBody(http.StatusServiceUnavailable, "job queue is full, retry later", true))
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}
