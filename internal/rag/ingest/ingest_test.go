package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
)

// --- Mocks ---

type mockEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedFunc == nil {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{float32(i), 1}
		}
		return out, nil
	}
	return m.embedFunc(ctx, texts)
}
func (m *mockEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (m *mockEmbedder) Dimension() int { return 2 }

type mockVectorDB struct {
	upsertFunc func(ctx context.Context, records []vectorDB.Record) error
	calls      *[]string
}

func (m *mockVectorDB) Name() string   { return "mock" }
func (m *mockVectorDB) Dimension() int { return 2 }
func (m *mockVectorDB) Upsert(ctx context.Context, records []vectorDB.Record) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, "store")
	}
	if m.upsertFunc == nil {
		return nil
	}
	return m.upsertFunc(ctx, records)
}
func (m *mockVectorDB) Query(ctx context.Context, v []float32, k int, f *commonModels.SearchFilter) ([]vectorDB.Hit, error) {
	return nil, nil
}
func (m *mockVectorDB) GetByDocument(ctx context.Context, id string) ([]commonModels.Chunk, error) {
	return nil, nil
}
func (m *mockVectorDB) CanFilter(commonModels.SearchFilter) bool { return true }
func (m *mockVectorDB) Ping(ctx context.Context) error           { return nil }

type mockLedger struct {
	OnUpsert func(ctx context.Context, chunks []commonModels.Chunk) error
	calls    *[]string
}

func (m *mockLedger) UpsertChunks(ctx context.Context, chunks []commonModels.Chunk) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, "ledger")
	}
	if m.OnUpsert == nil {
		return nil
	}
	return m.OnUpsert(ctx, chunks)
}

type mockUsage struct {
	resynced []string
}

func (m *mockUsage) Resync(ctx context.Context, ids []string) {
	m.resynced = append(m.resynced, ids...)
}

// --- Unit Tests ---

func TestGetDocType(t *testing.T) {
	tests := []struct {
		path     string
		expected commonModels.DocType
	}{
		{"test.pdf", commonModels.PDF},
		{"DOC.DOCX", commonModels.DOCX},
		{"notes.txt", commonModels.TXT},
		{"image.png", commonModels.ERR},
	}

	for _, tt := range tests {
		if got := getDocType(tt.path); got != tt.expected {
			t.Errorf("getDocType(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func TestSplitTextIntoChunks(t *testing.T) {
	text := "This is a long sentence. This is another sentence that will be split."
	limit := 30
	overlap := 5

	chunks := splitTextIntoChunks(text, limit, overlap)

	if len(chunks) < 2 {
		t.Errorf("Expected multiple chunks, got %d", len(chunks))
	}
	if len(chunks) > 1 {
		lastCharsOfFirst := chunks[0][len(chunks[0])-overlap:]
		if !strings.HasPrefix(chunks[1], lastCharsOfFirst) {
			t.Errorf("second chunk %q should start with overlap %q", chunks[1], lastCharsOfFirst)
		}
	}
}

func TestSplitTextIntoChunks_OverlapKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("αβγδε ", 40)
	for _, c := range splitTextIntoChunks(text, 50, 7) {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk is not valid UTF-8: %q", c)
		}
	}
}

func TestPrepareChunks(t *testing.T) {
	pages := []rawPage{
		{Number: 1, Content: "Page one content."},
		{Number: 2, Content: "Page two content."},
	}
	chunks := PrepareChunks(pages, FileSource{SourceDocId: "doc-1", JournalName: "Cell"})

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks (one per page), got %d", len(chunks))
	}
	if *chunks[0].SourceDocId != "doc-1" || *chunks[0].PageNumber != 1 || *chunks[1].PageNumber != 2 {
		t.Errorf("Metadata mismatch: %+v", chunks)
	}
	if *chunks[0].ChunkIndex != 0 || *chunks[1].ChunkIndex != 1 {
		t.Errorf("chunk indexes should run across pages, got %d and %d", *chunks[0].ChunkIndex, *chunks[1].ChunkIndex)
	}
	if *chunks[1].ChunkId != "doc-1-00001" || *chunks[1].JournalName != "Cell" || chunks[1].Year != nil {
		t.Errorf("unexpected chunk: id=%s", *chunks[1].ChunkId)
	}
}

func TestBatchIngest(t *testing.T) {
	records := make([]vectorDB.Record, 150) // 100 + 50
	callCount := 0
	vDB := &mockVectorDB{upsertFunc: func(ctx context.Context, r []vectorDB.Record) error {
		callCount++
		return nil
	}}

	if err := BatchIngest(context.Background(), records, vDB); err != nil {
		t.Fatalf("BatchIngest failed: %v", err)
	}
	if callCount != 2 {
		t.Errorf("Expected 2 batches to be upserted, got %d", callCount)
	}
}

func TestBatchIngest_Error(t *testing.T) {
	vDB := &mockVectorDB{upsertFunc: func(ctx context.Context, r []vectorDB.Record) error {
		return errors.New("upsert failed")
	}}
	if err := BatchIngest(context.Background(), make([]vectorDB.Record, 1), vDB); err == nil {
		t.Error("Expected error from BatchIngest, got nil")
	}
}

func TestUpload_LedgerBeforeStoreThenResync(t *testing.T) {
	var calls []string
	usage := &mockUsage{}
	p := NewPipeline(&mockEmbedder{}, &mockVectorDB{calls: &calls}, &mockLedger{calls: &calls}, usage)

	res, err := p.Upload(context.Background(), commonModels.UploadBatch{
		SchemaVersion: "1.0",
		Chunks:        []commonModels.RawChunk{rawChunk("c1", "doc_1", "alpha", 0), rawChunk("c2", "doc_1", "beta", 1)},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if strings.Join(calls, ",") != "ledger,store" {
		t.Errorf("write order = %v", calls)
	}
	if len(res.Accepted) != 2 || len(res.Rejected) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if strings.Join(usage.resynced, ",") != "c1,c2" {
		t.Errorf("resynced = %v", usage.resynced)
	}
}

func TestUpload_MissingSourceDocStoresNothing(t *testing.T) {
	stored := 0
	p := NewPipeline(&mockEmbedder{}, &mockVectorDB{upsertFunc: func(ctx context.Context, r []vectorDB.Record) error {
		stored += len(r)
		return nil
	}}, &mockLedger{}, nil)

	bad := commonModels.RawChunk{ChunkId: strPtr("c9"), Text: strPtr("text"), ChunkIndex: intPtr(0)}
	res, err := p.Upload(context.Background(), commonModels.UploadBatch{Chunks: []commonModels.RawChunk{bad}})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(res.Rejected) != 1 || !strings.Contains(res.Rejected[0].Reason, "source_doc_id") {
		t.Errorf("expected one source_doc_id rejection, got %+v", res.Rejected)
	}
	if stored != 0 {
		t.Errorf("stored %d vectors, want 0", stored)
	}
}

func TestUpload_PartialEmbeddingFailure(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		out := [][]float32{{1, 0}, nil, {0, 1}}
		return out, &ragErrors.ProviderUnavailable{Provider: "mock", FailedIndices: []int{1}}
	}}
	var written []string
	vDB := &mockVectorDB{upsertFunc: func(ctx context.Context, r []vectorDB.Record) error {
		for _, rec := range r {
			written = append(written, rec.Chunk.ChunkId)
		}
		return nil
	}}
	p := NewPipeline(emb, vDB, &mockLedger{}, nil)

	res, err := p.Upload(context.Background(), commonModels.UploadBatch{Chunks: []commonModels.RawChunk{
		rawChunk("c1", "d", "one", 0),
		{ChunkId: strPtr("bad")},
		rawChunk("c2", "d", "two", 1),
		rawChunk("c3", "d", "three", 2),
	}})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if strings.Join(written, ",") != "c1,c3" {
		t.Errorf("written = %v", written)
	}
	if len(res.NotEmbedded) != 1 || res.NotEmbedded[0] != "c2" {
		t.Errorf("not embedded = %v", res.NotEmbedded)
	}
	last := res.Rejected[len(res.Rejected)-1]
	if last.Index != 2 || last.Reason != notEmbeddedReason {
		t.Errorf("rejection for c2 = %+v", last)
	}
}

func TestUpload_RefusedEmbeddingKeepsCause(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{nil, nil}, &ragErrors.ProviderUnavailable{
			Provider:      "mock",
			FailedIndices: []int{0, 1},
			Refused:       map[int]string{1: "input too long"},
		}
	}}
	p := NewPipeline(emb, &mockVectorDB{}, &mockLedger{}, nil)

	res, err := p.Upload(context.Background(), commonModels.UploadBatch{Chunks: []commonModels.RawChunk{
		rawChunk("c1", "d", "one", 0),
		rawChunk("c2", "d", "two", 1),
	}})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(res.Rejected) != 2 {
		t.Fatalf("rejected = %+v", res.Rejected)
	}
	if res.Rejected[0].Reason != notEmbeddedReason {
		t.Errorf("c1 reason = %q", res.Rejected[0].Reason)
	}
	if want := refusedReason + ": input too long"; res.Rejected[1].Reason != want {
		t.Errorf("c2 reason = %q, want %q", res.Rejected[1].Reason, want)
	}
}

func TestUpload_DuplicateIdsLastWins(t *testing.T) {
	var texts []string
	vDB := &mockVectorDB{upsertFunc: func(ctx context.Context, r []vectorDB.Record) error {
		for _, rec := range r {
			texts = append(texts, rec.Chunk.Text)
		}
		return nil
	}}
	p := NewPipeline(&mockEmbedder{}, vDB, &mockLedger{}, nil)

	_, err := p.Upload(context.Background(), commonModels.UploadBatch{Chunks: []commonModels.RawChunk{
		rawChunk("c1", "d", "first", 0),
		rawChunk("c1", "d", "second", 0),
	}})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(texts) != 1 || texts[0] != "second" {
		t.Errorf("stored texts = %v", texts)
	}
}

func TestUpload_SameIdWritesDoNotInterleave(t *testing.T) {
	var mu sync.Mutex
	ledgerRows := map[string]string{}
	storeRows := map[string]string{}
	ledgerCalls := 0

	entered := make(chan struct{})
	gate := make(chan struct{})
	ledger := &mockLedger{OnUpsert: func(ctx context.Context, chunks []commonModels.Chunk) error {
		mu.Lock()
		ledgerCalls++
		mu.Unlock()
		if chunks[0].Text == "first" {
			close(entered)
			<-gate
		}
		mu.Lock()
		defer mu.Unlock()
		for _, c := range chunks {
			ledgerRows[c.ChunkId] = c.Text
		}
		return nil
	}}
	vDB := &mockVectorDB{upsertFunc: func(ctx context.Context, r []vectorDB.Record) error {
		mu.Lock()
		defer mu.Unlock()
		for _, rec := range r {
			storeRows[rec.Chunk.ChunkId] = rec.Chunk.Text
		}
		return nil
	}}
	p := NewPipeline(&mockEmbedder{}, vDB, ledger, nil)

	upload := func(text string) error {
		_, err := p.Upload(context.Background(), commonModels.UploadBatch{Chunks: []commonModels.RawChunk{rawChunk("c1", "d", text, 0)}})
		return err
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- upload("first")
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- upload("second")
	}()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	calls, stored := ledgerCalls, len(storeRows)
	mu.Unlock()
	if calls != 1 || stored != 0 {
		t.Errorf("second upload ran while the first held c1: ledger calls=%d store rows=%d", calls, stored)
	}

	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
	}
	if ledgerRows["c1"] != "second" || storeRows["c1"] != "second" {
		t.Errorf("ledger=%q store=%q, want both from the later upload", ledgerRows["c1"], storeRows["c1"])
	}
}

func TestUpload_Errors(t *testing.T) {
	p := NewPipeline(&mockEmbedder{}, &mockVectorDB{}, &mockLedger{OnUpsert: func(ctx context.Context, c []commonModels.Chunk) error {
		return ragErrors.Store("ledger", "upsert", errors.New("disk full"))
	}}, nil)

	_, err := p.Upload(context.Background(), commonModels.UploadBatch{SchemaVersion: "2.0", Chunks: []commonModels.RawChunk{rawChunk("c1", "d", "x", 0)}})
	if !errors.Is(err, ragErrors.ErrUnsupportedSchema) {
		t.Errorf("expected unsupported schema, got %v", err)
	}

	_, err = p.Upload(context.Background(), commonModels.UploadBatch{Chunks: make([]commonModels.RawChunk, config.MaxUploadChunks+1)})
	var v *ragErrors.ValidationError
	if !errors.As(err, &v) {
		t.Errorf("expected validation error, got %v", err)
	}

	_, err = p.Upload(context.Background(), commonModels.UploadBatch{Chunks: []commonModels.RawChunk{rawChunk("c1", "d", "x", 0)}})
	var se *ragErrors.StoreError
	if !errors.As(err, &se) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestIngestFile_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.txt")
	if err := os.WriteFile(path, []byte("Graph methods.\n\nThey work well."), 0o600); err != nil {
		t.Fatal(err)
	}
	var stored []vectorDB.Record
	p := NewPipeline(&mockEmbedder{}, &mockVectorDB{upsertFunc: func(ctx context.Context, r []vectorDB.Record) error {
		stored = append(stored, r...)
		return nil
	}}, &mockLedger{}, nil)

	res, err := p.IngestFile(context.Background(), FileSource{Path: path, SourceDocId: "paper", Year: 2019})
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if len(res.Accepted) != 1 || len(stored) != 1 {
		t.Fatalf("accepted=%v stored=%d", res.Accepted, len(stored))
	}
	c := stored[0].Chunk
	if c.ChunkId != "paper-00000" || c.Text != "Graph methods. They work well." || c.Year != 2019 || c.JournalName != config.UnknownJournal {
		t.Errorf("unexpected chunk %+v", c)
	}

	if _, err := p.IngestFile(context.Background(), FileSource{Path: "x.png", SourceDocId: "p"}); err == nil {
		t.Error("expected unsupported type error")
	}
}
