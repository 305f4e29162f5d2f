// Package openaiEmbedding talks to any OpenAI-compatible /embeddings endpoint.
package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/JournalRAG/internal/customHttpClient"
	"github.com/akolanti/JournalRAG/internal/rag/embedding"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const maxBatchSize = 2048

type client struct {
	api       openai.Client
	model     string
	dimension int
	logger    *logger_i.Logger
}

func NewOpenAIEmbedder(apiKey, baseURL, model string, dimension int) embedding.Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(customHttpClient.Client()),
		option.WithMaxRetries(0), // the generator owns retries
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &client{
		api:       openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
		logger:    logger_i.NewLogger("openai_embedding"),
	}
}

func (c *client) Name() string { return "openai" }

func (c *client) MaxBatchSize() int { return maxBatchSize }

func (c *client) EmbedBatch(ctx context.Context, texts []string, _ embedding.Purpose) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.model),
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	resp, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		c.logger.WithTrace(ctx).Error("Error getting Embeddings from OpenAI", "error", err)
		return nil, classifyError(err)
	}

	// results carry their input index; don't trust response order
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = toFloat32(d.Embedding)
	}
	return vectors, nil
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && embedding.IsRetryableHTTPStatus(apiErr.StatusCode) {
		return embedding.MarkTransient(err)
	}
	return err
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
