package vectorDB

import (
	"fmt"
	"math"
	"sort"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
)

// NormalizeCosine maps cosine similarity from [-1,1] onto [0,1]. It is the only score
// transform in the pipeline; thresholds and responses all use this scale.
func NormalizeCosine(cos float64) float64 {
	if math.IsNaN(cos) {
		return 0
	}
	s := (cos + 1) / 2
	return math.Max(0, math.Min(1, s))
}

// SortHits orders by score desc, ties by chunk id asc.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkId < hits[j].ChunkId
	})
}

// ClampTopK rejects non-positive k and caps k at the store ceiling.
func ClampTopK(k int) (int, error) {
	if k <= 0 {
		return 0, ragErrors.Validation("top_k", "must be positive")
	}
	return min(k, config.MaxStoreTopK), nil
}

func CheckDimension(want int, vector []float32) error {
	if want > 0 && len(vector) != want {
		return fmt.Errorf("%w: got %d, store expects %d", ragErrors.ErrDimensionMismatch, len(vector), want)
	}
	return nil
}
