package rag

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/data/ledger"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/internal/rag/embedding"
	"github.com/akolanti/JournalRAG/internal/rag/ingest"
	"github.com/akolanti/JournalRAG/internal/rag/llm"
	"github.com/akolanti/JournalRAG/internal/rag/retrieval"
	"github.com/akolanti/JournalRAG/internal/rag/synthesis"
	"github.com/akolanti/JournalRAG/internal/rag/usage"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

/*
Service is the only thing the handlers, the worker pool and the MCP server talk to.
The private service struct owns the stores and providers; nothing outside this package
reaches them directly, which keeps every caller swappable for a mock in tests.
*/

// Service is the public contract of the retrieval core.
type Service interface {
	Upload(ctx context.Context, batch commonModels.UploadBatch) (commonModels.UploadResult, error)
	Search(ctx context.Context, query commonModels.SearchQuery) (commonModels.SearchResponse, error)
	GetDocument(ctx context.Context, sourceDocId string) (commonModels.DocumentView, error)
	DocumentStats(ctx context.Context, sourceDocId string) (commonModels.DocumentStats, error)
	SearchStats(ctx context.Context) (commonModels.SearchStats, error)
	Health(ctx context.Context) commonModels.HealthReport
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

// Ledger is the relational side of the dual write plus the search log.
type Ledger interface {
	ingest.ChunkLedger
	usage.Ledger
	Document(ctx context.Context, sourceDocId string) (*ledger.Document, error)
	LogSearch(ctx context.Context, entry commonModels.SearchLog) error
	SearchStats(ctx context.Context) (commonModels.SearchStats, error)
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Embedder embedding.Embedder
	Store    vectorDB.Store
	Ledger   Ledger
	// Generator may be nil; answers then report generation_status "unavailable".
	Generator   llm.Provider
	MirrorUsage bool
}

type service struct {
	store       vectorDB.Store
	ledger      Ledger
	pipeline    *ingest.Pipeline
	ranker      *retrieval.Ranker
	synthesizer *synthesis.Synthesizer
	tracker     *usage.Tracker
	logger      *logger_i.Logger
}

// NewService wires the pipeline, ranker, synthesizer and usage tracker over one store and ledger.
func NewService(d Dependencies) Service {
	var mirror vectorDB.UsageMirror
	if m, ok := d.Store.(vectorDB.UsageMirror); ok && d.MirrorUsage {
		mirror = m
	}
	tracker := usage.NewTracker(d.Ledger, mirror)

	return &service{
		store:       d.Store,
		ledger:      d.Ledger,
		pipeline:    ingest.NewPipeline(d.Embedder, d.Store, d.Ledger, tracker),
		ranker:      retrieval.NewRanker(d.Embedder, d.Store, tracker),
		synthesizer: synthesis.NewSynthesizer(d.Generator),
		tracker:     tracker,
		logger:      logger_i.NewLogger("RAG Service").With("store", d.Store.Name()),
	}
}

func (s *service) Upload(ctx context.Context, batch commonModels.UploadBatch) (commonModels.UploadResult, error) {
	res, err := s.pipeline.Upload(ctx, batch)
	if err != nil {
		s.logger.WithTrace(ctx).Error("upload failed", "chunks", len(batch.Chunks), "error", err)
		return res, err
	}
	return res, nil
}

func (s *service) Search(ctx context.Context, query commonModels.SearchQuery) (commonModels.SearchResponse, error) {
	start := time.Now()
	log := s.logger.WithTrace(ctx)

	q, err := retrieval.Normalize(query)
	if err != nil {
		return commonModels.SearchResponse{}, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, config.SearchRequestTimeout)
	defer cancel()

	results, err := s.ranker.Search(searchCtx, q)
	if err != nil {
		log.Error("search failed", "error", err)
		return commonModels.SearchResponse{}, err
	}

	resp := commonModels.SearchResponse{Results: results}
	if q.GenerateAnswer {
		answer := s.synthesizer.Answer(searchCtx, q.Query, results)
		resp.Answer = &answer
	}
	resp.SearchTime = time.Since(start)
	metrics.CaptureExecutionMetrics("search", resp.SearchTime)

	s.logSearch(ctx, q, resp)
	return resp, nil
}

// GetDocument returns the document's chunks ordered by chunk index together with its usage stats,
// and counts the lookup against the document. A failed count does not fail the lookup.
func (s *service) GetDocument(ctx context.Context, sourceDocId string) (commonModels.DocumentView, error) {
	doc, err := s.ledger.Document(ctx, sourceDocId)
	if err != nil {
		return commonModels.DocumentView{}, err
	}
	chunks, err := s.store.GetByDocument(ctx, sourceDocId)
	if err != nil {
		return commonModels.DocumentView{}, err
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].ChunkIndex != chunks[j].ChunkIndex {
			return chunks[i].ChunkIndex < chunks[j].ChunkIndex
		}
		return chunks[i].ChunkId < chunks[j].ChunkId
	})

	stats, err := s.tracker.DocumentStats(ctx, sourceDocId)
	if err != nil {
		return commonModels.DocumentView{}, err
	}
	stats.Chunks = nil

	if counted, err := s.tracker.RecordDocumentAccess(ctx, sourceDocId); err != nil {
		s.logger.WithTrace(ctx).Error("document access not recorded", "sourceDocId", sourceDocId, "error", err)
	} else {
		doc = counted
	}

	return commonModels.DocumentView{
		SourceDocId:  doc.SourceDocId,
		Title:        doc.Title,
		JournalName:  doc.JournalName,
		Year:         doc.Year,
		AccessCount:  doc.AccessCount,
		LastAccessed: doc.LastAccessed,
		Chunks:       chunks,
		Stats:        stats,
	}, nil
}

func (s *service) DocumentStats(ctx context.Context, sourceDocId string) (commonModels.DocumentStats, error) {
	return s.tracker.DocumentStats(ctx, sourceDocId)
}

func (s *service) SearchStats(ctx context.Context) (commonModels.SearchStats, error) {
	return s.ledger.SearchStats(ctx)
}

func (s *service) Health(ctx context.Context) commonModels.HealthReport {
	report := commonModels.HealthReport{Status: commonModels.HealthOK, Components: map[string]string{}}
	check := func(name string, ping func(context.Context) error) {
		pctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		if err := ping(pctx); err != nil {
			s.logger.WithTrace(ctx).Warn("health check failed", "component", name, "error", err)
			report.Components[name] = "down"
			report.Status = commonModels.HealthDegraded
			return
		}
		report.Components[name] = "up"
	}
	check("vector_store", s.store.Ping)
	check("ledger", s.ledger.Ping)
	return report
}

// IngestDocument runs an uploaded file through the pipeline. The temp file is removed either way.
func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()
	log := s.logger.WithTrace(ctx).With("jobId", job.Id)

	p := job.JobPayload
	defer removeTempFile(p.IngestURL, log)

	job = logOutput(job, jobModel.IngestExtracting, log)
	result, err := s.pipeline.IngestFile(ctx, ingest.FileSource{
		Path:        p.IngestURL,
		SourceDocId: p.SourceDocId,
		JournalName: p.JournalName,
		Year:        p.Year,
	})
	if err != nil {
		return s.jobError(ctx, job, err, "INGESTION_FAILURE")
	}

	job.JobPayload.Result = &result
	log.Info("Document ingested", "accepted", len(result.Accepted), "rejected", len(result.Rejected), "notEmbedded", len(result.NotEmbedded))
	return logOutput(job, jobModel.Complete, log)
}

func removeTempFile(path string, log *logger_i.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove uploaded file", "path", path, "error", err)
	}
}
