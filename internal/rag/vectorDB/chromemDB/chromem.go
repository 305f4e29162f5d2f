// Package chromemDB is the embedded vector store: no server, optional persistence to a directory.
package chromemDB

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/philippgille/chromem-go"
)

const storeName = "chromem"

const (
	metaSourceDocId = "source_doc_id"
	metaChunkIndex  = "chunk_index"
	metaJournal     = "journal_name"
	metaYear        = "year"
	metaSection     = "section"
	metaSubsection  = "subsection"
	metaPage        = "page_number"
)

var errNoEmbedder = errors.New("chromem collection only accepts precomputed embeddings")

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
	logger     *logger_i.Logger
}

// New opens the collection under path. An empty path keeps everything in memory.
func New(path, collection string, dimension int) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, ragErrors.Store(storeName, "open", err)
		}
	}

	metadata := map[string]string{"hnsw:space": "cosine"}
	c, err := db.GetOrCreateCollection(collection, metadata, refuseEmbedding)
	if err != nil {
		return nil, ragErrors.Store(storeName, "collection", err)
	}
	if err := checkStoredDimension(c, dimension); err != nil {
		return nil, fmt.Errorf("collection %s: %w", collection, err)
	}

	s := &Store{
		db:         db,
		collection: c,
		dimension:  dimension,
		logger:     logger_i.NewLogger("chromem").With("collection", collection),
	}
	s.logger.Info("vector store ready", "path", path, "documents", c.Count())
	return s, nil
}

// checkStoredDimension compares the configured size with the vectors a reopened collection
// already holds. chromem does not record a collection's size, so one stored vector is read back.
func checkStoredDimension(c *chromem.Collection, dimension int) error {
	if dimension <= 0 || c.Count() == 0 {
		return nil
	}
	unit := make([]float32, dimension)
	unit[0] = 1
	res, err := c.QueryEmbedding(context.Background(), unit, 1, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: stored vectors are not %d dims: %v", ragErrors.ErrDimensionMismatch, dimension, err)
	}
	if len(res) > 0 && len(res[0].Embedding) != dimension {
		return fmt.Errorf("%w: stored vectors have %d dims, embedder produces %d", ragErrors.ErrDimensionMismatch, len(res[0].Embedding), dimension)
	}
	return nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func (s *Store) Name() string { return storeName }

func (s *Store) Dimension() int { return s.dimension }

// CanFilter is false for year ranges: chromem's where clause only does string equality.
func (s *Store) CanFilter(f commonModels.SearchFilter) bool {
	return f.YearFrom == 0 && f.YearTo == 0
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Upsert(ctx context.Context, records []vectorDB.Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]string, len(records))
	contents := make([]string, len(records))

	for i, r := range records {
		if err := vectorDB.CheckDimension(s.dimension, r.Vector); err != nil {
			return fmt.Errorf("chunk %s: %w", r.Chunk.ChunkId, err)
		}
		ids[i] = r.Chunk.ChunkId
		embeddings[i] = r.Vector
		metadatas[i] = toMetadata(r.Chunk.ChunkMetadata)
		contents[i] = r.Chunk.Text
	}

	// Add overwrites documents whose id already exists
	return ragErrors.Store(storeName, "add", s.collection.Add(ctx, ids, embeddings, metadatas, contents))
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter *commonModels.SearchFilter) ([]vectorDB.Hit, error) {
	if err := vectorDB.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}
	k, err := vectorDB.ClampTopK(topK)
	if err != nil {
		return nil, err
	}
	count := s.collection.Count()
	if count == 0 {
		return []vectorDB.Hit{}, nil
	}

	var where map[string]string
	if filter != nil && filter.Journal != "" {
		where = map[string]string{metaJournal: filter.Journal}
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, min(k, count), where, nil)
	if err != nil {
		return nil, ragErrors.Store(storeName, "query", err)
	}

	hits := make([]vectorDB.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, vectorDB.Hit{
			ChunkId:  r.ID,
			Score:    vectorDB.NormalizeCosine(float64(r.Similarity)),
			Text:     r.Content,
			Metadata: fromMetadata(r.Metadata),
		})
	}
	vectorDB.SortHits(hits)
	return hits, nil
}

// GetByDocument ranks every chunk of the document against a fixed basis vector; the order is discarded.
func (s *Store) GetByDocument(ctx context.Context, sourceDocId string) ([]commonModels.Chunk, error) {
	count := s.collection.Count()
	if count == 0 || s.dimension <= 0 {
		return []commonModels.Chunk{}, nil
	}
	unit := make([]float32, s.dimension)
	unit[0] = 1

	results, err := s.collection.QueryEmbedding(ctx, unit, count, map[string]string{metaSourceDocId: sourceDocId}, nil)
	if err != nil {
		return nil, ragErrors.Store(storeName, "get_by_document", err)
	}
	chunks := make([]commonModels.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, commonModels.Chunk{
			ChunkId:       r.ID,
			Text:          r.Content,
			ChunkMetadata: fromMetadata(r.Metadata),
		})
	}
	return chunks, nil
}

func toMetadata(m commonModels.ChunkMetadata) map[string]string {
	return map[string]string{
		metaSourceDocId: m.SourceDocId,
		metaChunkIndex:  strconv.Itoa(m.ChunkIndex),
		metaJournal:     m.JournalName,
		metaYear:        strconv.Itoa(m.Year),
		metaSection:     m.Section,
		metaSubsection:  m.Subsection,
		metaPage:        strconv.Itoa(m.PageNumber),
	}
}

func fromMetadata(m map[string]string) commonModels.ChunkMetadata {
	return commonModels.ChunkMetadata{
		SourceDocId: m[metaSourceDocId],
		ChunkIndex:  atoi(m[metaChunkIndex]),
		JournalName: m[metaJournal],
		Year:        atoi(m[metaYear]),
		Section:     m[metaSection],
		Subsection:  m[metaSubsection],
		PageNumber:  atoi(m[metaPage]),
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
