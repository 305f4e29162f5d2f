package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/data/ledger"
	"github.com/akolanti/JournalRAG/internal/rag"
	"github.com/akolanti/JournalRAG/internal/rag/embedding"
	"github.com/akolanti/JournalRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/JournalRAG/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/JournalRAG/internal/rag/llm"
	"github.com/akolanti/JournalRAG/internal/rag/llm/anthropicLLM"
	"github.com/akolanti/JournalRAG/internal/rag/llm/gemini"
	"github.com/akolanti/JournalRAG/internal/rag/llm/openaiLLM"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB/chromemDB"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

// runtime is everything a command needs from the core. close releases the ledger;
// the providers shut down when the context passed to buildRuntime ends.
type runtime struct {
	service rag.Service
	ledger  *ledger.Ledger
}

func (r *runtime) close() {
	if r.ledger != nil {
		_ = r.ledger.Close()
	}
}

func buildRuntime(ctx context.Context, s *config.Settings) (*runtime, error) {
	log := logger_i.NewLogger("main")

	led, err := openLedger(ctx, s.Ledger)
	if err != nil {
		return nil, err
	}

	provider, err := newEmbeddingProvider(ctx, s.Embedding)
	if err != nil {
		_ = led.Close()
		return nil, err
	}
	policy := embedding.DefaultRetryPolicy()
	policy.MaxAttempts = s.Embedding.MaxAttempts
	embedder := embedding.NewGenerator(provider, embedding.GeneratorConfig{
		BatchSize:     s.Embedding.BatchSize,
		Dimension:     s.Embedding.Dimension,
		MaxConcurrent: s.Embedding.MaxConcurrent,
		Policy:        policy,
	})

	store, err := newVectorStore(ctx, s.VectorDB, s.Embedding.Dimension)
	if err != nil {
		_ = led.Close()
		return nil, err
	}

	generator := newGenerationProvider(ctx, s.Generation)
	if generator == nil {
		log.Warn("Answer generation disabled", "provider", s.Generation.Provider)
	}

	log.Info("Core ready",
		"embedding", provider.Name(),
		"store", store.Name(),
		"ledger", s.Ledger.Driver,
		"generation", s.Generation.Provider)

	return &runtime{
		service: rag.NewService(rag.Dependencies{
			Embedder:    embedder,
			Store:       store,
			Ledger:      led,
			Generator:   generator,
			MirrorUsage: s.VectorDB.MirrorUsage,
		}),
		ledger: led,
	}, nil
}

func openLedger(ctx context.Context, s config.LedgerSettings) (*ledger.Ledger, error) {
	led, err := ledger.Open(s.Driver, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if err := led.Migrate(ctx); err != nil {
		_ = led.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	return led, nil
}

func newEmbeddingProvider(ctx context.Context, s config.EmbeddingSettings) (embedding.Provider, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("no API key for embedding provider %q", s.Provider)
	}
	switch s.Provider {
	case "openai":
		return openaiEmbedding.NewOpenAIEmbedder(s.APIKey, s.BaseURL, s.Model, s.Dimension), nil
	default:
		p := googleEmbedding.GetGoogleEmbeddingClient(ctx, s.Model, s.APIKey, s.Dimension)
		if p == nil {
			return nil, errors.New("gemini embedding client failed to initialize")
		}
		return p, nil
	}
}

// newGenerationProvider returns nil when generation is off or the provider can't start.
func newGenerationProvider(ctx context.Context, s config.GenerationSettings) llm.Provider {
	if s.Provider == "none" || s.APIKey == "" {
		return nil
	}
	switch s.Provider {
	case "openai":
		return openaiLLM.NewOpenAIClient(s.APIKey, s.BaseURL, s.Model)
	case "anthropic":
		return anthropicLLM.NewAnthropicClient(s.APIKey, s.BaseURL, s.Model)
	default:
		return gemini.GetGeminiClient(ctx, s.Model, s.APIKey)
	}
}

func newVectorStore(ctx context.Context, s config.VectorDBSettings, dimension int) (vectorDB.Store, error) {
	switch s.Backend {
	case "chromem":
		store, err := chromemDB.New(s.Path, s.Collection, dimension)
		if err != nil {
			return nil, fmt.Errorf("opening chromem store: %w", err)
		}
		return store, nil
	default:
		holder := qdrantDB.GetQuadrantClient(ctx, qdrantDB.Options{
			Host:       s.Host,
			Port:       s.Port,
			UseTLS:     s.UseTLS,
			Collection: s.Collection,
			Dimension:  dimension,
		})
		if holder == nil {
			return nil, fmt.Errorf("qdrant at %s:%d is unavailable", s.Host, s.Port)
		}
		return holder, nil
	}
}
