package vectorDB

import (
	"context"
	"sync"
)

// KeyedQueue serializes work per key in arrival order. A caller reserves its place on every
// key in one critical section, so multi-key reservations cannot deadlock. The ingest pipeline
// holds a reservation on every chunk id it writes across the ledger, store and usage steps.
type KeyedQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func NewKeyedQueue() *KeyedQueue {
	return &KeyedQueue{tails: make(map[string]chan struct{})}
}

// Acquire waits until every earlier reservation on keys is released and returns the release
// func for this one. On ctx cancellation the place in line is kept until the writers ahead finish.
func (q *KeyedQueue) Acquire(ctx context.Context, keys []string) (func(), error) {
	mine := make(chan struct{})
	seen := make(map[string]struct{}, len(keys))
	var prevs []chan struct{}

	q.mu.Lock()
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if p, ok := q.tails[k]; ok {
			prevs = append(prevs, p)
		}
		q.tails[k] = mine
	}
	q.mu.Unlock()

	release := func() {
		q.mu.Lock()
		for k := range seen {
			if q.tails[k] == mine {
				delete(q.tails, k)
			}
		}
		q.mu.Unlock()
		close(mine)
	}

	for i, p := range prevs {
		select {
		case <-p:
		case <-ctx.Done():
			rest := prevs[i:]
			go func() {
				for _, r := range rest {
					<-r
				}
				release()
			}()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
