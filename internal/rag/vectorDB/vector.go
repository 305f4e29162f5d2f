package vectorDB

import (
	"context"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
)

type Record struct {
	Chunk  commonModels.Chunk
	Vector []float32
}

// Hit is one similarity match. Score is NormalizeCosine'd, so every backend reports on [0,1].
type Hit struct {
	ChunkId  string
	Score    float64
	Text     string
	Metadata commonModels.ChunkMetadata
}

// Store owns vectors, chunk text and the metadata snapshot, keyed by chunk id.
type Store interface {
	Name() string
	Dimension() int

	// Upsert replaces any existing record with the same chunk id.
	Upsert(ctx context.Context, records []Record) error
	// Query returns at most topK hits, score desc then chunk id asc. filter may be nil.
	Query(ctx context.Context, vector []float32, topK int, filter *commonModels.SearchFilter) ([]Hit, error)
	GetByDocument(ctx context.Context, sourceDocId string) ([]commonModels.Chunk, error)

	// CanFilter reports whether Query applies f itself; otherwise the caller post-filters.
	CanFilter(f commonModels.SearchFilter) bool
	Ping(ctx context.Context) error
}

// UsageMirror is implemented by stores that keep a copy of usage counters in their payload.
// Values are absolute, so replaying a mirror is harmless.
type UsageMirror interface {
	MirrorUsage(ctx context.Context, counts map[string]int64) error
}
