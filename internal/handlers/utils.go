package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/JournalRAG/internal/adapter"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

const uploadDir = "temporary_data"

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already out
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateContext(r *http.Request) bool {
	if err := r.Context().Err(); err != nil {
		logRH.WithTrace(r.Context()).Warn("context error", "error", err)
		return false
	}
	return true
}

func traceOf(r *http.Request) string {
	trace, _ := logger_i.TraceID(r.Context())
	return trace
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, message string) {
	writeJsonResponse(w, httpCode, adapter.ErrorBody(httpCode, message, false))
}

// writeServiceError maps a pipeline error onto its status; internals only reach the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, message, retry := ragErrors.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		logRH.WithTrace(r.Context()).Error("Request failed", "path", r.URL.Path, "code", code, "error", err)
	}
	writeJsonResponse(w, code, adapter.ErrorBody(code, message, retry))
}

func getTargetDirectory() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", err
	}

	targetDir := filepath.Join(root, uploadDir)
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", err
	}
	return targetDir, nil
}
