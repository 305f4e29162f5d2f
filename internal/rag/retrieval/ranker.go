package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

const usageTimeout = 5 * time.Second

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type UsageRecorder interface {
	RecordAccess(ctx context.Context, chunkIds []string) error
}

type Ranker struct {
	embedder QueryEmbedder
	store    vectorDB.Store
	usage    UsageRecorder
	logger   *logger_i.Logger
}

func NewRanker(e QueryEmbedder, s vectorDB.Store, u UsageRecorder) *Ranker {
	return &Ranker{
		embedder: e,
		store:    s,
		usage:    u,
		logger:   logger_i.NewLogger("ranker").With("store", s.Name()),
	}
}

// Normalize fills defaults and rejects out-of-range parameters. k above the ceiling is clamped.
func Normalize(q commonModels.SearchQuery) (commonModels.SearchQuery, error) {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return q, ragErrors.Validation("query", "must not be empty")
	}
	switch {
	case q.K == 0:
		q.K = config.DefaultK
	case q.K < 0:
		return q, ragErrors.Validation("k", "must be positive")
	case q.K > config.MaxK:
		q.K = config.MaxK
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return q, ragErrors.Validation("min_score", "must be between 0 and 1")
	}
	f := q.Filter
	if f.YearFrom != 0 && f.YearTo != 0 && f.YearFrom > f.YearTo {
		return q, ragErrors.Validation("year_from", "must not be after year_to")
	}
	return q, nil
}

// Search embeds the query, asks the store for candidates and returns at most k results with
// score >= MinScore, ordered by score desc then chunk id asc. Each returned chunk is counted once.
// When the store cannot apply the filter, candidates are fetched FilterOverFetch*k at a time and
// the request doubles until k results match, the store runs out or MaxStoreTopK is reached.
func (r *Ranker) Search(ctx context.Context, query commonModels.SearchQuery) ([]commonModels.SearchResult, error) {
	q, err := Normalize(query)
	if err != nil {
		return nil, err
	}
	log := r.logger.WithTrace(ctx)

	vector, err := r.embedder.EmbedQuery(ctx, q.Query)
	if err != nil {
		return nil, err
	}

	topK, filter, postFilter := r.plan(q)
	var (
		hits    []vectorDB.Hit
		results []commonModels.SearchResult
	)
	for {
		start := time.Now()
		hits, err = r.store.Query(ctx, vector, topK, filter)
		metrics.CaptureExecutionMetrics("vector_query", time.Since(start))
		if err != nil {
			return nil, err
		}
		results = collect(hits, q, postFilter)
		if !postFilter || !shouldWiden(q, hits, topK, len(results)) {
			break
		}
		topK = min(topK*2, config.MaxStoreTopK)
		log.Debug("widening post-filter candidates", "topK", topK, "matched", len(results))
	}
	sortResults(results)
	if len(results) > q.K {
		results = results[:q.K]
	}
	log.Debug("ranked", "candidates", len(hits), "returned", len(results), "postFilter", postFilter)

	r.recordUsage(ctx, results)
	return results, nil
}

// collect keeps the hits that pass the filter (when it is applied here) and the score threshold.
func collect(hits []vectorDB.Hit, q commonModels.SearchQuery, postFilter bool) []commonModels.SearchResult {
	results := make([]commonModels.SearchResult, 0, min(len(hits), q.K))
	for _, h := range hits {
		if postFilter && !q.Filter.Matches(h.Metadata) {
			continue
		}
		if h.Score < q.MinScore {
			continue
		}
		results = append(results, commonModels.SearchResult{
			ChunkId:  h.ChunkId,
			Text:     h.Text,
			Score:    h.Score,
			Metadata: h.Metadata,
		})
	}
	return results
}

// shouldWiden reports whether a post-filtered search should ask the store for more candidates:
// fewer than k matched, the store filled the request, the ceiling is not reached and the
// weakest candidate still clears the threshold.
func shouldWiden(q commonModels.SearchQuery, hits []vectorDB.Hit, topK, matched int) bool {
	if matched >= q.K || len(hits) < topK || topK >= config.MaxStoreTopK {
		return false
	}
	return hits[len(hits)-1].Score >= q.MinScore
}

// plan decides whether the filter goes to the store or is applied here over a wider candidate set.
func (r *Ranker) plan(q commonModels.SearchQuery) (int, *commonModels.SearchFilter, bool) {
	if q.Filter.IsEmpty() {
		return q.K, nil, false
	}
	if r.store.CanFilter(q.Filter) {
		f := q.Filter
		return q.K, &f, false
	}
	return min(q.K*config.FilterOverFetch, config.MaxStoreTopK), nil, true
}

// recordUsage runs once the result list is final. It survives caller cancellation so a
// returned result is always counted, and a failure never fails the search.
func (r *Ranker) recordUsage(ctx context.Context, results []commonModels.SearchResult) {
	if r.usage == nil || len(results) == 0 {
		return
	}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.ChunkId
	}
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageTimeout)
	defer cancel()
	if err := r.usage.RecordAccess(uctx, ids); err != nil {
		r.logger.WithTrace(ctx).Error("usage not recorded", "chunks", len(ids), "error", err)
	}
}

func sortResults(results []commonModels.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkId < results[j].ChunkId
	})
}
