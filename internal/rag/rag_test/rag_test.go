package rag_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/data/ledger"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/rag"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB/chromemDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEmbedder maps texts onto three topic axes so similarity is predictable.
type MockEmbedder struct {
	OnEmbed func(ctx context.Context, texts []string) ([][]float32, error)
}

func topicVector(text string) []float32 {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "neural"):
		return []float32{1, 0, 0}
	case strings.Contains(t, "protein"):
		return []float32{0, 1, 0}
	}
	return []float32{0, 0, 1}
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = topicVector(t)
	}
	return out, nil
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	return topicVector(q), nil
}

func (m *MockEmbedder) Dimension() int { return 3 }

type MockLLM struct {
	OnGenerate func(ctx context.Context, system, user string) (string, error)
}

func (m *MockLLM) Name() string { return "mock" }

func (m *MockLLM) Generate(ctx context.Context, system, user string) (string, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, system, user)
	}
	return "", errors.New("no generator configured")
}

type fixture struct {
	svc    rag.Service
	ledger *ledger.Ledger
	llm    *MockLLM
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := ledger.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, l.Migrate(context.Background()))
	t.Cleanup(func() { _ = l.Close() })

	store, err := chromemDB.New("", "rag_test", 3)
	require.NoError(t, err)

	llm := &MockLLM{}
	return &fixture{
		svc: rag.NewService(rag.Dependencies{
			Embedder:  &MockEmbedder{},
			Store:     store,
			Ledger:    l,
			Generator: llm,
		}),
		ledger: l,
		llm:    llm,
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func raw(id, doc, text string, idx int) commonModels.RawChunk {
	return commonModels.RawChunk{
		ChunkId:     strPtr(id),
		Text:        strPtr(text),
		ChunkIndex:  intPtr(idx),
		SourceDocId: strPtr(doc),
		JournalName: strPtr("Nature"),
		Year:        intPtr(2021),
		Section:     strPtr("results"),
	}
}

func seed(t *testing.T, f *fixture) {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), commonModels.UploadBatch{
		SchemaVersion: config.SupportedSchemaVersion,
		Chunks: []commonModels.RawChunk{
			raw("c1", "doc_1", "Neural networks learn layered representations.", 0),
			raw("c2", "doc_1", "Protein folding is predicted from sequence.", 1),
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, res.Accepted)
}

func usageOf(t *testing.T, f *fixture, id string) int64 {
	t.Helper()
	counts, err := f.ledger.UsageCounts(context.Background(), []string{id})
	require.NoError(t, err)
	return counts[id]
}

func TestSearch_ReturnsClosestChunkAndCountsUsage(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	resp, err := f.svc.Search(context.Background(), commonModels.SearchQuery{Query: "neural networks", K: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkId)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
	assert.Nil(t, resp.Answer)
	assert.Positive(t, resp.SearchTime)

	assert.Equal(t, int64(1), usageOf(t, f, "c1"))
	assert.Equal(t, int64(0), usageOf(t, f, "c2"), "unreturned chunks are not counted")
}

func TestUpload_MissingSourceDocIsRejected(t *testing.T) {
	f := newFixture(t)
	bad := raw("c9", "", "orphan text", 0)
	bad.SourceDocId = nil

	res, err := f.svc.Upload(context.Background(), commonModels.UploadBatch{
		SchemaVersion: config.SupportedSchemaVersion,
		Chunks:        []commonModels.RawChunk{bad},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "source_doc_id")

	_, err = f.svc.GetDocument(context.Background(), "")
	var nf *ragErrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUpload_ReuploadKeepsUsage(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	ctx := context.Background()

	_, err := f.svc.Search(ctx, commonModels.SearchQuery{Query: "neural", K: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), usageOf(t, f, "c1"))

	seed(t, f)
	assert.Equal(t, int64(1), usageOf(t, f, "c1"))

	doc, err := f.svc.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 2, "re-upload must not duplicate chunks")
	assert.Equal(t, "c1", doc.Chunks[0].ChunkId)
	assert.Equal(t, "c2", doc.Chunks[1].ChunkId)
	assert.Equal(t, int64(1), doc.Stats.TotalUsage)
	assert.Nil(t, doc.Stats.Chunks)
}

func TestGetDocument_CountsLookupsAndShowsTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := raw("c1", "doc_1", "Neural networks learn layered representations.", 0)
	c.Subsection = strPtr("training setup")
	_, err := f.svc.Upload(ctx, commonModels.UploadBatch{SchemaVersion: config.SupportedSchemaVersion, Chunks: []commonModels.RawChunk{c}})
	require.NoError(t, err)

	first, err := f.svc.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.AccessCount)

	doc, err := f.svc.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, "Nature (2021)", doc.Title)
	assert.Equal(t, int64(2), doc.AccessCount)
	assert.NotNil(t, doc.LastAccessed)
	require.Len(t, doc.Chunks, 1)
	assert.Equal(t, "training setup", doc.Chunks[0].Subsection)
	assert.Equal(t, int64(0), doc.Stats.TotalUsage, "document lookups are not chunk usage")

	resp, err := f.svc.Search(ctx, commonModels.SearchQuery{Query: "neural", K: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "training setup", resp.Results[0].Metadata.Subsection)
}

func TestSearch_GenerationFailureStillReturnsResults(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	f.llm.OnGenerate = func(ctx context.Context, system, user string) (string, error) {
		return "", errors.New("provider down")
	}

	resp, err := f.svc.Search(context.Background(), commonModels.SearchQuery{Query: "neural", K: 2, GenerateAnswer: true})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, commonModels.GenerationUnavailable, resp.Answer.Status)
	assert.Empty(t, resp.Answer.Citations)
}

func TestSearch_GeneratedAnswerCitesOnlyReturnedChunks(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	f.llm.OnGenerate = func(ctx context.Context, system, user string) (string, error) {
		return "Layered representations [[source:c1]] and folding [[source:c404]].", nil
	}

	resp, err := f.svc.Search(context.Background(), commonModels.SearchQuery{Query: "neural", K: 1, GenerateAnswer: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, commonModels.GenerationOK, resp.Answer.Status)
	assert.Equal(t, []string{"c1"}, resp.Answer.Citations)
	assert.NotContains(t, resp.Answer.AnswerText, "c404")
}

func TestSearch_EmptyStoreHasNoGrounding(t *testing.T) {
	f := newFixture(t)
	called := false
	f.llm.OnGenerate = func(ctx context.Context, system, user string) (string, error) {
		called = true
		return "made up", nil
	}

	resp, err := f.svc.Search(context.Background(), commonModels.SearchQuery{Query: "anything", GenerateAnswer: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, commonModels.GenerationNoGrounding, resp.Answer.Status)
	assert.False(t, called)
}

func TestSearch_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		query commonModels.SearchQuery
	}{
		{"empty query", commonModels.SearchQuery{Query: "   "}},
		{"negative k", commonModels.SearchQuery{Query: "x", K: -1}},
		{"min score above one", commonModels.SearchQuery{Query: "x", MinScore: 1.5}},
		{"inverted years", commonModels.SearchQuery{Query: "x", Filter: commonModels.SearchFilter{YearFrom: 2020, YearTo: 2010}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Search(context.Background(), tt.query)
			code, _, _ := ragErrors.HTTPStatus(err)
			if code != http.StatusBadRequest {
				t.Errorf("Search() code = %d, want 400 (err %v)", code, err)
			}
		})
	}
}

func TestSearch_ConcurrentUsageIsExact(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Search(context.Background(), commonModels.SearchQuery{Query: "neural", K: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(n), usageOf(t, f, "c1"))

	stats, err := f.svc.SearchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(n), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TotalDocuments)
	assert.Equal(t, int64(2), stats.TotalChunks)
}

func TestDocumentStats(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	ctx := context.Background()

	_, err := f.svc.Search(ctx, commonModels.SearchQuery{Query: "protein", K: 1})
	require.NoError(t, err)

	stats, err := f.svc.DocumentStats(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, int64(1), stats.TotalUsage)
	assert.Equal(t, "results", stats.MostPopularSection)
	assert.NotNil(t, stats.LastAccessed)
	assert.Len(t, stats.Chunks, 2)

	_, err = f.svc.DocumentStats(ctx, "missing")
	var nf *ragErrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	report := f.svc.Health(context.Background())
	assert.Equal(t, commonModels.HealthOK, report.Status)
	assert.Equal(t, "up", report.Components["vector_store"])
	assert.Equal(t, "up", report.Components["ledger"])
}

func TestIngestDocument_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		fileName       string
		content        string
		expectedStep   jobModel.InternalStatus
		expectedStatus jobModel.JobStatus
		expectedCode   int
	}{
		{
			name:           "Success_Plain_Text",
			fileName:       "paper.txt",
			content:        "Neural networks generalise.\n\nProtein structures fold.",
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusRunning,
		},
		{
			name:           "Failure_Unsupported_Type",
			fileName:       "paper.xls",
			content:        "cells",
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			path := filepath.Join(t.TempDir(), tt.fileName)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			job := jobModel.Job{
				Id:      "job-1",
				JobType: jobModel.JobTypeIngest,
				Status:  jobModel.JobStatusRunning,
				JobPayload: jobModel.JobPayload{
					IngestFileName: tt.fileName,
					IngestURL:      path,
					SourceDocId:    "doc_file",
					JournalName:    "Cell",
					Year:           2019,
				},
			}
			got := f.svc.IngestDocument(context.Background(), job)

			if got.CurrentStep != tt.expectedStep {
				t.Errorf("CurrentStep = %s, want %s", got.CurrentStep, tt.expectedStep)
			}
			if got.Status != tt.expectedStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.expectedStatus)
			}
			if got.Error.Code != tt.expectedCode {
				t.Errorf("Error.Code = %d, want %d", got.Error.Code, tt.expectedCode)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("uploaded file should be removed after ingest")
			}
			if tt.expectedCode == 0 {
				if got.JobPayload.Result == nil || len(got.JobPayload.Result.Accepted) == 0 {
					t.Fatalf("expected accepted chunks, got %+v", got.JobPayload.Result)
				}
				doc, err := f.svc.GetDocument(context.Background(), "doc_file")
				if err != nil {
					t.Fatalf("GetDocument() error = %v", err)
				}
				if doc.JournalName != "Cell" || doc.Year != 2019 {
					t.Errorf("document metadata = %s/%d", doc.JournalName, doc.Year)
				}
			}
		})
	}
}
