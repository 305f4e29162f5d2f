package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/JournalRAG/internal/adapter/utils"
	"github.com/akolanti/JournalRAG/internal/handlers"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var (
	UploadHandler           = Wrap(handlers.UploadHandler)
	SimilaritySearchHandler = Wrap(handlers.SimilaritySearchHandler)
	SearchStatsHandler      = Wrap(handlers.SearchStatsHandler)
	GetDocumentHandler      = Wrap(handlers.GetDocumentHandler)
	DocumentStatsHandler    = Wrap(handlers.DocumentStatsHandler)
	HealthHandler           = Wrap(handlers.HealthHandler)
	GetStatusHandler        = Wrap(handlers.GetStatusHandler)
	PostIngestHandler       = Wrap(handlers.PostIngestHandler)
)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if !handleBadRequest(re) {
			recordRequest(r, rec.Status)
			return
		}
		next(rec, re.req)
		recordRequest(re.req, rec.Status)
	}
}

// recordRequest labels by route pattern so path parameters don't explode the series count.
func recordRequest(r *http.Request, status int) {
	metrics.HttpRequestsTotal.WithLabelValues(utils.GetRoutePattern(r), strconv.Itoa(status)).Inc()
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)
	return rateLimiter(re)
}
