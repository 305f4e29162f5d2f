package embedding

import "context"

type Purpose string

const (
	PurposeDocument Purpose = "RETRIEVAL_DOCUMENT"
	PurposeQuery    Purpose = "RETRIEVAL_QUERY"
)

// Provider is one upstream embedding API. It makes a single call per invocation; retries,
// batching and ordering are the Generator's job.
type Provider interface {
	Name() string
	MaxBatchSize() int
	EmbedBatch(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error)
}

// Embedder is what ingestion and retrieval depend on.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Dimension() int
}
