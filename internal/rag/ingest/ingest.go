package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/metrics"
	"github.com/akolanti/JournalRAG/internal/rag/embedding"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

const (
	storeBatchSize    = 100
	notEmbeddedReason = "embedding provider unavailable"
	refusedReason     = "embedding rejected by provider"
)

type ChunkLedger interface {
	UpsertChunks(ctx context.Context, chunks []commonModels.Chunk) error
}

// UsageSyncer restores mirrored usage counters after the store replaced a payload.
type UsageSyncer interface {
	Resync(ctx context.Context, chunkIds []string)
}

type Pipeline struct {
	embedder embedding.Embedder
	store    vectorDB.Store
	ledger   ChunkLedger
	usage    UsageSyncer
	queue    *vectorDB.KeyedQueue
	logger   *logger_i.Logger
}

func NewPipeline(e embedding.Embedder, s vectorDB.Store, l ChunkLedger, u UsageSyncer) *Pipeline {
	return &Pipeline{
		embedder: e,
		store:    s,
		ledger:   l,
		usage:    u,
		queue:    vectorDB.NewKeyedQueue(),
		logger:   logger_i.NewLogger("ingest"),
	}
}

// Upload normalizes, embeds and stores a batch. Bad records and records whose embedding batch
// kept failing are reported in the result; only schema, size and storage problems fail the call.
func (p *Pipeline) Upload(ctx context.Context, batch commonModels.UploadBatch) (commonModels.UploadResult, error) {
	log := p.logger.WithTrace(ctx)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("upload", time.Since(start)) }()

	if len(batch.Chunks) > config.MaxUploadChunks {
		return commonModels.UploadResult{}, ragErrors.Validation("chunks", fmt.Sprintf("at most %d chunks per upload", config.MaxUploadChunks))
	}

	normalized, err := Normalize(batch.SchemaVersion, batch.Chunks)
	if err != nil {
		return commonModels.UploadResult{}, err
	}
	result := commonModels.UploadResult{
		Accepted: []string{},
		Rejected: normalized.Rejected,
	}
	log.Debug("normalized upload", "accepted", len(normalized.Accepted), "rejected", len(normalized.Rejected))
	if len(normalized.Accepted) == 0 {
		return result, nil
	}

	texts := make([]string, len(normalized.Accepted))
	for i, c := range normalized.Accepted {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	var unavailable *ragErrors.ProviderUnavailable
	switch {
	case err == nil:
	case errors.As(err, &unavailable):
		log.Warn("upload partially embedded", "notEmbedded", len(unavailable.FailedIndices), "error", err)
	default:
		return commonModels.UploadResult{}, err
	}

	rawIndex := acceptedPositions(len(batch.Chunks), normalized.Rejected)
	records := make([]vectorDB.Record, 0, len(normalized.Accepted))
	for i, c := range normalized.Accepted {
		if vectors[i] == nil {
			result.NotEmbedded = append(result.NotEmbedded, c.ChunkId)
			result.Rejected = append(result.Rejected, commonModels.RejectedChunk{
				Index:   rawIndex[i],
				ChunkId: c.ChunkId,
				Record:  batch.Chunks[rawIndex[i]],
				Reason:  notEmbeddedFor(unavailable, i),
			})
			continue
		}
		records = append(records, vectorDB.Record{Chunk: c, Vector: vectors[i]})
	}
	if len(records) == 0 {
		return result, nil
	}

	if err := p.write(ctx, records); err != nil {
		return commonModels.UploadResult{}, err
	}
	for _, r := range records {
		result.Accepted = append(result.Accepted, r.Chunk.ChunkId)
	}
	log.Info("upload stored", "chunks", len(records), "rejected", len(result.Rejected))
	return result, nil
}

// write puts rows into the ledger first, so a chunk is never searchable without a counter row,
// then the vector store. Both are idempotent upserts; a failed upload is safe to resubmit whole.
// Uploads touching the same chunk id run the ledger, store and resync steps one at a time in
// arrival order, so the ledger row and the stored payload always come from the same upload.
func (p *Pipeline) write(ctx context.Context, records []vectorDB.Record) error {
	records = lastWins(records)
	chunks := make([]commonModels.Chunk, len(records))
	ids := make([]string, len(records))
	for i, r := range records {
		chunks[i] = r.Chunk
		ids[i] = r.Chunk.ChunkId
	}

	release, err := p.queue.Acquire(ctx, ids)
	if err != nil {
		return err
	}
	defer release()

	if err := p.ledger.UpsertChunks(ctx, chunks); err != nil {
		return err
	}
	if err := BatchIngest(ctx, records, p.store); err != nil {
		return err
	}
	if p.usage != nil {
		p.usage.Resync(ctx, ids)
	}
	return nil
}

// notEmbeddedFor separates inputs the provider refused outright from ones it never got to.
func notEmbeddedFor(pu *ragErrors.ProviderUnavailable, i int) string {
	if pu != nil {
		if reason, ok := pu.Refused[i]; ok {
			return refusedReason + ": " + reason
		}
	}
	return notEmbeddedReason
}

// BatchIngest upserts records in fixed-size groups.
func BatchIngest(ctx context.Context, records []vectorDB.Record, store vectorDB.Store) error {
	for i := 0; i < len(records); i += storeBatchSize {
		end := min(i+storeBatchSize, len(records))
		start := time.Now()
		err := store.Upsert(ctx, records[i:end])
		metrics.CaptureExecutionMetrics("vector_upsert", time.Since(start))
		if err != nil {
			return fmt.Errorf("upserting records %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// lastWins keeps the final occurrence of each chunk id, in first-seen position.
func lastWins(records []vectorDB.Record) []vectorDB.Record {
	pos := make(map[string]int, len(records))
	out := make([]vectorDB.Record, 0, len(records))
	for _, r := range records {
		if i, ok := pos[r.Chunk.ChunkId]; ok {
			out[i] = r
			continue
		}
		pos[r.Chunk.ChunkId] = len(out)
		out = append(out, r)
	}
	return out
}

// acceptedPositions maps the n-th accepted chunk back to its position in the upload.
func acceptedPositions(total int, rejected []commonModels.RejectedChunk) []int {
	skip := make(map[int]struct{}, len(rejected))
	for _, r := range rejected {
		skip[r.Index] = struct{}{}
	}
	out := make([]int, 0, total-len(rejected))
	for i := 0; i < total; i++ {
		if _, ok := skip[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
