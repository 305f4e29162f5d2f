package vectorDB

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCosine(t *testing.T) {
	assert.Equal(t, 1.0, NormalizeCosine(1))
	assert.Equal(t, 0.5, NormalizeCosine(0))
	assert.Equal(t, 0.0, NormalizeCosine(-1))
	assert.Equal(t, 1.0, NormalizeCosine(1.0000001), "float noise is clamped")
}

func TestSortHits_TiesByChunkId(t *testing.T) {
	hits := []Hit{{ChunkId: "c3", Score: 0.9}, {ChunkId: "c2", Score: 0.8}, {ChunkId: "c1", Score: 0.9}, {ChunkId: "c0", Score: 0.8}}
	SortHits(hits)
	got := []string{hits[0].ChunkId, hits[1].ChunkId, hits[2].ChunkId, hits[3].ChunkId}
	assert.Equal(t, []string{"c1", "c3", "c0", "c2"}, got)
}

func TestClampTopK(t *testing.T) {
	k, err := ClampTopK(5000)
	require.NoError(t, err)
	assert.Equal(t, 1000, k)

	_, err = ClampTopK(0)
	var v *ragErrors.ValidationError
	assert.ErrorAs(t, err, &v)
}

func TestCheckDimension(t *testing.T) {
	assert.NoError(t, CheckDimension(3, []float32{1, 2, 3}))
	assert.ErrorIs(t, CheckDimension(3, []float32{1, 2}), ragErrors.ErrDimensionMismatch)
}

// recordingStore logs upsert start/end per chunk so overlap can be detected.
type recordingStore struct {
	mu      sync.Mutex
	active  map[string]int
	order   []string
	overlap bool
}

func (r *recordingStore) Name() string   { return "recording" }
func (r *recordingStore) Dimension() int { return 0 }
func (r *recordingStore) Query(context.Context, []float32, int, *commonModels.SearchFilter) ([]Hit, error) {
	return nil, nil
}
func (r *recordingStore) GetByDocument(context.Context, string) ([]commonModels.Chunk, error) {
	return nil, nil
}
func (r *recordingStore) CanFilter(commonModels.SearchFilter) bool { return true }
func (r *recordingStore) Ping(context.Context) error               { return nil }

func (r *recordingStore) Upsert(_ context.Context, records []Record) error {
	r.mu.Lock()
	for _, rec := range records {
		r.active[rec.Chunk.ChunkId]++
		if r.active[rec.Chunk.ChunkId] > 1 {
			r.overlap = true
		}
	}
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	for _, rec := range records {
		r.active[rec.Chunk.ChunkId]--
		r.order = append(r.order, rec.Chunk.Text)
	}
	r.mu.Unlock()
	return nil
}

func rec(id, text string) Record {
	return Record{Chunk: commonModels.Chunk{ChunkId: id, Text: text}}
}

func TestKeyedQueue_SameKeyNeverOverlaps(t *testing.T) {
	inner := &recordingStore{active: map[string]int{}}
	q := NewKeyedQueue()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := q.Acquire(context.Background(), []string{"hot", "other"})
			if err != nil {
				return
			}
			defer release()
			_ = inner.Upsert(context.Background(), []Record{rec("hot", "x"), rec("other", "y")})
		}()
	}
	wg.Wait()
	assert.False(t, inner.overlap)
}

func TestKeyedQueue_ArrivalOrderWins(t *testing.T) {
	inner := &recordingStore{active: map[string]int{}}
	q := NewKeyedQueue()

	hold, err := q.Acquire(context.Background(), []string{"c1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, text := range []string{"v1", "v2", "v3"} {
		before := tail(q, "c1")
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := q.Acquire(context.Background(), []string{"c1"})
			if err != nil {
				return
			}
			defer release()
			_ = inner.Upsert(context.Background(), []Record{rec("c1", text)})
		}()
		require.Eventually(t, func() bool { return tail(q, "c1") != before }, time.Second, time.Millisecond)
	}
	hold()
	wg.Wait()

	assert.Equal(t, []string{"v1", "v2", "v3"}, inner.order)
}

func tail(q *KeyedQueue, key string) chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tails[key]
}

func TestKeyedQueue_CancelledWaiterKeepsOrder(t *testing.T) {
	q := NewKeyedQueue()
	release1, err := q.Acquire(context.Background(), []string{"a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Acquire(ctx, []string{"a"})
	assert.True(t, errors.Is(err, context.Canceled))

	acquired := make(chan struct{})
	go func() {
		release3, err := q.Acquire(context.Background(), []string{"a"})
		if err == nil {
			release3()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third waiter ran while the first still held the key")
	case <-time.After(20 * time.Millisecond):
	}
	release1()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third waiter never ran")
	}
}
