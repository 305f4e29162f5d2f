package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of ingest jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var embeddingRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "embedding_retries_total",
	Help: "Embedding batch attempts that failed transiently and were retried",
}, []string{"provider"})

var embeddingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "embedding_failed_inputs_total",
	Help: "Inputs left without a vector after retries",
}, []string{"provider"})

var citationAnomalies = promauto.NewCounter(prometheus.CounterOpts{
	Name: "synthesis_citation_anomalies_total",
	Help: "Citations dropped because they referenced chunks outside the supplied context",
})

var generationStatus = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "synthesis_generation_status_total",
	Help: "Answer synthesis outcomes",
}, []string{"status"})

var usageIncrements = promauto.NewCounter(prometheus.CounterOpts{
	Name: "usage_increments_total",
	Help: "Chunk usage counter increments",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func IncrementEmbeddingRetries(provider string) {
	embeddingRetries.WithLabelValues(provider).Inc()
}

func AddEmbeddingFailures(provider string, n int) {
	embeddingFailures.WithLabelValues(provider).Add(float64(n))
}

func AddCitationAnomalies(n int) {
	citationAnomalies.Add(float64(n))
}

func CaptureGenerationStatus(status string) {
	generationStatus.WithLabelValues(status).Inc()
}

func AddUsageIncrements(n int) {
	usageIncrements.Add(float64(n))
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent processing an ingest job.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of pipeline steps and external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
