package embedding

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const maxParallelBatches = 4

// Generator turns texts into vectors through a Provider. Batch boundaries, retries and the
// optional provider-wide concurrency limit are invisible to callers.
type Generator struct {
	provider  Provider
	policy    RetryPolicy
	batchSize int
	dimension int
	limiter   *semaphore.Weighted
	logger    *logger_i.Logger
}

type GeneratorConfig struct {
	BatchSize int
	Dimension int
	// MaxConcurrent bounds in-flight provider calls across all callers. 0 means unbounded.
	MaxConcurrent int
	Policy        RetryPolicy
}

func NewGenerator(p Provider, cfg GeneratorConfig) *Generator {
	size := cfg.BatchSize
	if limit := p.MaxBatchSize(); size <= 0 || (limit > 0 && size > limit) {
		size = limit
	}
	if size <= 0 {
		size = 1
	}
	g := &Generator{
		provider:  p,
		policy:    cfg.Policy,
		batchSize: size,
		dimension: cfg.Dimension,
		logger:    logger_i.NewLogger("embedding_generator").With("provider", p.Name()),
	}
	if cfg.MaxConcurrent > 0 {
		g.limiter = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return g
}

func (g *Generator) Dimension() int {
	return g.dimension
}

func (g *Generator) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := g.embed(ctx, []string{query}, PurposeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed returns one vector per text in input order. When some batches still fail after
// retries the result keeps nil entries at those positions and the error is a
// *ragErrors.ProviderUnavailable naming them. Inputs of batches that failed with a
// non-retryable error also carry that error in Refused.
func (g *Generator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embed(ctx, texts, PurposeDocument)
}

func (g *Generator) embed(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	log := g.logger.WithTrace(ctx)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	var (
		mu      sync.Mutex
		failed  []int
		refused = map[int]string{}
		causes  []error
		grp     errgroup.Group
		batches = 0
	)
	grp.SetLimit(maxParallelBatches)

	for lo := 0; lo < len(texts); lo += g.batchSize {
		hi := min(lo+g.batchSize, len(texts))
		batches++
		grp.Go(func() error {
			vectors, err := g.embedBatch(ctx, texts[lo:hi], purpose, log)
			if err != nil {
				log.Warn("embedding batch failed", "from", lo, "to", hi, "error", err)
				mu.Lock()
				permanent := !IsTransient(err) && ctx.Err() == nil
				for i := lo; i < hi; i++ {
					failed = append(failed, i)
					if permanent {
						refused[i] = err.Error()
					}
				}
				causes = append(causes, fmt.Errorf("batch [%d,%d): %w", lo, hi, err))
				mu.Unlock()
				return nil
			}
			copy(out[lo:hi], vectors)
			return nil
		})
	}
	_ = grp.Wait()

	if len(failed) == 0 {
		return out, nil
	}
	slices.Sort(failed)
	metrics.AddEmbeddingFailures(g.provider.Name(), len(failed))
	log.Error("embedding incomplete", "batches", batches, "failedInputs", len(failed))
	return out, &ragErrors.ProviderUnavailable{
		Provider:      "embedding provider " + g.provider.Name(),
		FailedIndices: failed,
		Refused:       refused,
		Cause:         errors.Join(causes...),
	}
}

func (g *Generator) embedBatch(ctx context.Context, batch []string, purpose Purpose, log *logger_i.Logger) ([][]float32, error) {
	var vectors [][]float32

	policy := g.policy
	userNotify := policy.OnRetry
	policy.OnRetry = func(err error, wait time.Duration) {
		metrics.IncrementEmbeddingRetries(g.provider.Name())
		log.Debug("retrying embedding batch", "size", len(batch), "wait", wait, "error", err)
		if userNotify != nil {
			userNotify(err, wait)
		}
	}

	attempts, err := policy.Do(ctx, func(callCtx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Acquire(callCtx, 1); err != nil {
				return err
			}
			defer g.limiter.Release(1)
		}
		res, err := g.provider.EmbedBatch(callCtx, batch, purpose)
		if err != nil {
			return err
		}
		if err := g.check(res, len(batch)); err != nil {
			return err
		}
		vectors = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("after %d attempt(s): %w", attempts, err)
	}
	return vectors, nil
}

// check rejects short responses and vectors of the wrong size; neither is retried.
func (g *Generator) check(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), want)
	}
	for i, v := range vectors {
		if g.dimension > 0 && len(v) != g.dimension {
			return fmt.Errorf("%w: vector %d has %d dims, want %d", ragErrors.ErrDimensionMismatch, i, len(v), g.dimension)
		}
	}
	return nil
}
