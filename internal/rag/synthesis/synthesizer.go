// Package synthesis turns ranked search results into a cited answer.
package synthesis

import (
	"context"
	"math"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/internal/rag/llm"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

type Synthesizer struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *logger_i.Logger
}

// NewSynthesizer accepts a nil provider; every answer is then unavailable.
func NewSynthesizer(p llm.Provider) *Synthesizer {
	return &Synthesizer{
		provider: p,
		timeout:  config.GenerationTimeout,
		logger:   logger_i.NewLogger("synthesizer"),
	}
}

// Answer never returns an error: provider failure is reported through Status so callers
// can still return the results they already have. The model is called at most once.
func (s *Synthesizer) Answer(ctx context.Context, query string, results []commonModels.SearchResult) commonModels.GeneratedAnswer {
	log := s.logger.WithTrace(ctx)
	if len(results) == 0 {
		metrics.CaptureGenerationStatus(string(commonModels.GenerationNoGrounding))
		return commonModels.GeneratedAnswer{Citations: []string{}, Status: commonModels.GenerationNoGrounding}
	}
	if s.provider == nil {
		return unavailable()
	}

	system, user := BuildPrompt(query, results)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	text, err := s.provider.Generate(genCtx, system, user)
	metrics.CaptureExecutionMetrics("llm_generation", time.Since(start))
	if err != nil {
		log.Error("generation failed", "provider", s.provider.Name(), "error", err)
		return unavailable()
	}

	known := make(map[string]struct{}, len(results))
	for _, r := range results {
		known[r.ChunkId] = struct{}{}
	}
	citations, dropped := ValidateCitations(ExtractCitations(text), known)
	if len(dropped) > 0 {
		metrics.AddCitationAnomalies(len(dropped))
		log.Warn("synthesis anomaly: citations outside supplied context dropped", "dropped", dropped)
		text = StripForeignMarkers(text, known)
	}

	metrics.CaptureGenerationStatus(string(commonModels.GenerationOK))
	return commonModels.GeneratedAnswer{
		AnswerText: text,
		Citations:  citations,
		Status:     commonModels.GenerationOK,
		Confidence: Confidence(results),
	}
}

func unavailable() commonModels.GeneratedAnswer {
	metrics.CaptureGenerationStatus(string(commonModels.GenerationUnavailable))
	return commonModels.GeneratedAnswer{Citations: []string{}, Status: commonModels.GenerationUnavailable}
}

// Confidence blends mean similarity (70%) with how many sources backed the answer, saturating at 5.
func Confidence(results []commonModels.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Score
	}
	avg := sum / float64(len(results))
	coverage := math.Min(float64(len(results))/5, 1)
	return math.Round((avg*0.7+coverage*0.3)*100) / 100
}
