package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, l.Migrate(context.Background()))
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func chunk(id, doc, section string, idx int, text string) commonModels.Chunk {
	return commonModels.Chunk{
		ChunkId: id,
		Text:    text,
		ChunkMetadata: commonModels.ChunkMetadata{
			SourceDocId: doc, ChunkIndex: idx, JournalName: "Nature", Year: 2020, Section: section,
		},
	}
}

func TestUpsertChunks_KeepsUsageOnReupload(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{chunk("c1", "d1", "intro", 0, "abc")}))
	_, err := l.IncrementUsage(ctx, []string{"c1"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{chunk("c1", "d1", "methods", 0, "abcdef")}))

	rows, err := l.DocumentChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].UsageCount)
	assert.Equal(t, "methods", rows[0].Section)
	assert.Equal(t, 6, rows[0].TextLength)
	assert.NotNil(t, rows[0].LastAccessed)
}

func TestUpsertChunks_DuplicateIdsInOneBatch(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{
		chunk("c1", "d1", "intro", 0, "first"),
		chunk("c1", "d1", "results", 0, "second!"),
	}))

	rows, err := l.DocumentChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "results", rows[0].Section)
}

func TestIncrementUsage_ConcurrentIsExact(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{
		chunk("c1", "d1", "intro", 0, "a"),
		chunk("c2", "d1", "intro", 1, "b"),
	}))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.IncrementUsage(ctx, []string{"c1", "c2"}, time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	counts, err := l.UsageCounts(ctx, []string{"c1", "c2", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"c1": n, "c2": n}, counts)
}

func TestIncrementUsage_ReturnsAbsoluteCounts(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{chunk("c1", "d1", "intro", 0, "a")}))

	_, err := l.IncrementUsage(ctx, []string{"c1"}, time.Now())
	require.NoError(t, err)
	counts, err := l.IncrementUsage(ctx, []string{"c1", "unknown"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"c1": 2}, counts)
}

func TestUpsertChunks_TitleAndSubsection(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	c := chunk("c1", "d1", "methods", 0, "abc")
	c.Subsection = "statistical analysis"
	unknownYear := chunk("c2", "d2", "intro", 0, "xyz")
	unknownYear.Year = 0
	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{c, unknownYear}))

	doc, err := l.Document(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Nature (2020)", doc.Title)
	doc, err = l.Document(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, "Nature", doc.Title)

	rows, err := l.DocumentChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "statistical analysis", rows[0].Subsection)
}

func TestRecordDocumentAccess(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{chunk("c1", "d1", "intro", 0, "abc")}))

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.RecordDocumentAccess(ctx, "d1", at)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := l.RecordDocumentAccess(ctx, "d1", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(11), doc.AccessCount)
	require.NotNil(t, doc.LastAccessed)
	assert.True(t, doc.LastAccessed.Equal(at.Add(time.Hour)))

	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{chunk("c2", "d1", "intro", 1, "def")}))
	doc, err = l.Document(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), doc.AccessCount, "re-upload keeps the document counter")

	_, err = l.RecordDocumentAccess(ctx, "ghost", at)
	var nf *ragErrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDocument_NotFound(t *testing.T) {
	_, err := newLedger(t).Document(context.Background(), "nope")
	var nf *ragErrors.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSearchStats(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	empty, err := l.SearchStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalSearches)

	require.NoError(t, l.UpsertChunks(ctx, []commonModels.Chunk{
		chunk("c1", "d1", "intro", 0, "a"),
		chunk("c2", "d2", "intro", 0, "b"),
	}))
	require.NoError(t, l.LogSearch(ctx, commonModels.SearchLog{Query: "q1", K: 5, ResultCount: 2, SearchTimeMs: 10}))
	require.NoError(t, l.LogSearch(ctx, commonModels.SearchLog{Query: "q2", K: 5, ResultCount: 4, SearchTimeMs: 30}))

	stats, err := l.SearchStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.InDelta(t, 20.0, stats.AvgSearchTimeMs, 1e-9)
	assert.InDelta(t, 3.0, stats.AvgResultCount, 1e-9)
	assert.Equal(t, int64(2), stats.TotalDocuments)
	assert.Equal(t, int64(2), stats.TotalChunks)
}
