// Package usage is the only code path that mutates chunk usage counters.
package usage

import (
	"context"
	"sort"
	"time"

	"github.com/akolanti/JournalRAG/internal/data/ledger"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

type Ledger interface {
	IncrementUsage(ctx context.Context, chunkIds []string, at time.Time) (map[string]int64, error)
	UsageCounts(ctx context.Context, chunkIds []string) (map[string]int64, error)
	DocumentChunks(ctx context.Context, sourceDocId string) ([]ledger.Chunk, error)
	RecordDocumentAccess(ctx context.Context, sourceDocId string, at time.Time) (*ledger.Document, error)
}

// Tracker increments counters in the ledger and, when a mirror is set, copies the resulting
// absolute values into the vector store payload. The ledger is the store of record.
type Tracker struct {
	ledger Ledger
	mirror vectorDB.UsageMirror
	now    func() time.Time
	logger *logger_i.Logger
}

func NewTracker(l Ledger, mirror vectorDB.UsageMirror) *Tracker {
	return &Tracker{
		ledger: l,
		mirror: mirror,
		now:    time.Now,
		logger: logger_i.NewLogger("usage_tracker"),
	}
}

// RecordAccess counts one access per distinct id, however often it repeats in chunkIds.
func (t *Tracker) RecordAccess(ctx context.Context, chunkIds []string) error {
	ids := distinct(chunkIds)
	if len(ids) == 0 {
		return nil
	}
	counts, err := t.ledger.IncrementUsage(ctx, ids, t.now().UTC())
	if err != nil {
		return err
	}
	metrics.AddUsageIncrements(len(counts))
	t.mirrorCounts(ctx, counts)
	return nil
}

// RecordDocumentAccess counts one direct lookup of a document. Document counters live only in the ledger.
func (t *Tracker) RecordDocumentAccess(ctx context.Context, sourceDocId string) (*ledger.Document, error) {
	return t.ledger.RecordDocumentAccess(ctx, sourceDocId, t.now().UTC())
}

// Resync pushes the ledger's counts back into the vector store after an upsert replaced the payload.
func (t *Tracker) Resync(ctx context.Context, chunkIds []string) {
	if t.mirror == nil {
		return
	}
	counts, err := t.ledger.UsageCounts(ctx, distinct(chunkIds))
	if err != nil {
		t.logger.WithTrace(ctx).Warn("usage resync skipped", "error", err)
		return
	}
	for id, c := range counts {
		if c == 0 {
			delete(counts, id)
		}
	}
	t.mirrorCounts(ctx, counts)
}

func (t *Tracker) mirrorCounts(ctx context.Context, counts map[string]int64) {
	if t.mirror == nil || len(counts) == 0 {
		return
	}
	if err := t.mirror.MirrorUsage(ctx, counts); err != nil {
		t.logger.WithTrace(ctx).Warn("usage mirror failed, ledger remains authoritative", "chunks", len(counts), "error", err)
	}
}

// DocumentStats aggregates over the document's chunks at read time.
func (t *Tracker) DocumentStats(ctx context.Context, sourceDocId string) (commonModels.DocumentStats, error) {
	rows, err := t.ledger.DocumentChunks(ctx, sourceDocId)
	if err != nil {
		return commonModels.DocumentStats{}, err
	}
	if len(rows) == 0 {
		return commonModels.DocumentStats{}, ragErrors.NotFound("document", sourceDocId)
	}
	return Aggregate(sourceDocId, rows), nil
}

// Aggregate is split out so the ledger-free path stays testable.
// most_popular_section goes to the highest summed usage, then the most chunks, then the lower name.
func Aggregate(sourceDocId string, rows []ledger.Chunk) commonModels.DocumentStats {
	stats := commonModels.DocumentStats{
		SourceDocId:     sourceDocId,
		TotalChunks:     len(rows),
		ChunksBySection: make(map[string]int),
		Chunks:          make([]commonModels.UsageRecord, 0, len(rows)),
	}
	sectionUsage := make(map[string]int64)
	totalLength := 0

	for _, r := range rows {
		stats.ChunksBySection[r.Section]++
		sectionUsage[r.Section] += r.UsageCount
		stats.TotalUsage += r.UsageCount
		totalLength += r.TextLength
		if r.LastAccessed != nil && (stats.LastAccessed == nil || r.LastAccessed.After(*stats.LastAccessed)) {
			last := *r.LastAccessed
			stats.LastAccessed = &last
		}
		stats.Chunks = append(stats.Chunks, commonModels.UsageRecord{
			ChunkId:      r.ChunkId,
			ChunkIndex:   r.ChunkIndex,
			Section:      r.Section,
			UsageCount:   r.UsageCount,
			LastAccessed: r.LastAccessed,
		})
	}
	if len(rows) > 0 {
		stats.AverageChunkLength = float64(totalLength) / float64(len(rows))
	}

	sections := make([]string, 0, len(stats.ChunksBySection))
	for s := range stats.ChunksBySection {
		sections = append(sections, s)
	}
	sort.Slice(sections, func(i, j int) bool {
		a, b := sections[i], sections[j]
		if sectionUsage[a] != sectionUsage[b] {
			return sectionUsage[a] > sectionUsage[b]
		}
		if stats.ChunksBySection[a] != stats.ChunksBySection[b] {
			return stats.ChunksBySection[a] > stats.ChunksBySection[b]
		}
		return a < b
	})
	if len(sections) > 0 {
		stats.MostPopularSection = sections[0]
	}
	return stats
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
