package googleEmbedding

import (
	"context"
	"sync"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/customHttpClient"
	"github.com/akolanti/JournalRAG/internal/rag/embedding"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"google.golang.org/genai"
)

// Gemini accepts at most 100 contents per EmbedContent call.
const maxBatchSize = 100

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string, dimension int) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apikey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.Client(),
	})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
	}
	if c != nil {
		embeddingClient = &client{
			genAi:     c,
			model:     modelName,
			dimension: int32(dimension),
		}
		logger.Debug("Google Embedding model", "name", modelName, "dimension", dimension)
		logger.Info("Google Embedding client created")
		go closeClient(ctx, embeddingClient)
	}
}

func closeClient(ctx context.Context, embeddingClient *client) {
	<-ctx.Done()
	logger.Info("Closing Google Embedding client")
	embeddingClient.genAi = nil
	embeddingClient.model = ""
}

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string, dimension int) embedding.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		if dimension <= 0 {
			dimension = config.EmbeddingOutputDimensionality
		}
		newGoogleEmbedder(ctx, modelName, apikey, dimension)
	})

	//if init still fails
	if embeddingClient == nil {
		return nil
	}
	return &client{genAi: embeddingClient.genAi, model: embeddingClient.model, dimension: embeddingClient.dimension}
}

func (c *client) Name() string { return "gemini" }

func (c *client) MaxBatchSize() int { return maxBatchSize }

func (c *client) EmbedBatch(ctx context.Context, texts []string, purpose embedding.Purpose) ([][]float32, error) {
	log := logger.WithTrace(ctx)
	log.Debug("embedding batch", "size", len(texts), "purpose", purpose)

	result, err := c.genAi.Models.EmbedContent(ctx, c.model, getContent(texts), &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             string(purpose),
	})
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, classifyError(err, log)
	}

	vectors := make([][]float32, 0, len(result.Embeddings))
	for _, r := range result.Embeddings {
		if r == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, r.Values)
	}
	return vectors, nil
}
