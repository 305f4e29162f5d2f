package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/internal/rag/vectorDB"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

const storeName = "qdrant"

// a document never has more chunks than this in practice; GetByDocument scrolls once
const maxChunksPerDocument = 10000

var logger *logger_i.Logger
var quadrantInstance *qdrant.Client
var once sync.Once

type Options struct {
	Host       string
	Port       int
	UseTLS     bool
	Collection string
	Dimension  int
}

type ClientHolder struct {
	QObj       *qdrant.Client
	collection string
	dimension  int
}

// GetQuadrantClient connects once, ensures the collection and its payload indexes exist and
// refuses to start if the collection was built with a different vector size.
func GetQuadrantClient(ctx context.Context, opts Options) *ClientHolder {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient(ctx, opts)
		if res != nil {
			quadrantInstance = res
			go closeQdrant(ctx, quadrantInstance)
		}
	})

	if quadrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj:       quadrantInstance,
		collection: opts.Collection,
		dimension:  opts.Dimension,
	}
}

func newClient(ctx context.Context, opts Options) *qdrant.Client {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     opts.Host,
		Port:     opts.Port,
		UseTLS:   opts.UseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil
	}

	initCtx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()

	if err = createCollection(initCtx, client, opts.Collection, opts.Dimension); err != nil {
		logger.Error("could not prepare collection", "collectionName", opts.Collection, "error", err)
		_ = client.Close()
		return nil
	}
	createPayloadIndexes(initCtx, client, opts.Collection)
	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) Name() string { return storeName }

func (db *ClientHolder) Dimension() int { return db.dimension }

func (db *ClientHolder) CanFilter(commonModels.SearchFilter) bool { return true }

func (db *ClientHolder) Ping(ctx context.Context) error {
	_, err := db.QObj.HealthCheck(ctx)
	return ragErrors.Store(storeName, "health", err)
}

func (db *ClientHolder) Upsert(ctx context.Context, records []vectorDB.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	ingestedAt := time.Now().Unix()

	for i, r := range records {
		if err := vectorDB.CheckDimension(db.dimension, r.Vector); err != nil {
			return fmt.Errorf("chunk %s: %w", r.Chunk.ChunkId, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.Chunk.ChunkId)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(toPayload(r.Chunk, ingestedAt)),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	return ragErrors.Store(storeName, "upsert", err)
}

func (db *ClientHolder) Query(ctx context.Context, vector []float32, topK int, filter *commonModels.SearchFilter) ([]vectorDB.Hit, error) {
	loggr := logger.WithTrace(ctx)
	if err := vectorDB.CheckDimension(db.dimension, vector); err != nil {
		return nil, err
	}
	k, err := vectorDB.ClampTopK(topK)
	if err != nil {
		return nil, err
	}

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: db.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant", "error", err)
		return nil, ragErrors.Store(storeName, "query", err)
	}

	hits := make([]vectorDB.Hit, 0, len(result))
	for _, point := range result {
		chunk := fromPayload(point.GetPayload())
		hits = append(hits, vectorDB.Hit{
			ChunkId:  chunk.ChunkId,
			Score:    vectorDB.NormalizeCosine(float64(point.GetScore())),
			Text:     chunk.Text,
			Metadata: chunk.ChunkMetadata,
		})
	}
	vectorDB.SortHits(hits)
	loggr.Debug("qdrant matches", "count", len(hits))
	return hits, nil
}

func (db *ClientHolder) GetByDocument(ctx context.Context, sourceDocId string) ([]commonModels.Chunk, error) {
	points, err := db.QObj.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: db.collection,
		Filter: &qdrant.Filter{Must: []*qdrant.Condition{
			qdrant.NewMatch(fieldSourceDocId, sourceDocId),
		}},
		Limit:       qdrant.PtrOf(uint32(maxChunksPerDocument)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, ragErrors.Store(storeName, "scroll", err)
	}

	chunks := make([]commonModels.Chunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, fromPayload(p.GetPayload()))
	}
	return chunks, nil
}

// MirrorUsage copies absolute counters into the point payload. Best effort; the ledger is authoritative.
func (db *ClientHolder) MirrorUsage(ctx context.Context, counts map[string]int64) error {
	var errs []error
	for chunkId, count := range counts {
		_, err := db.QObj.SetPayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: db.collection,
			Payload:        qdrant.NewValueMap(map[string]any{fieldUsageCount: count}),
			PointsSelector: qdrant.NewPointsSelector(qdrant.NewID(pointID(chunkId))),
			Wait:           qdrant.PtrOf(false),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", chunkId, err))
		}
	}
	return ragErrors.Store(storeName, "set_payload", errors.Join(errs...))
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension int) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}
	if dimension <= 0 {
		return errors.New("vector dimension must be positive")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		info, err := client.GetCollectionInfo(ctx, collectionName)
		if err != nil {
			return err
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != uint64(dimension) {
			return fmt.Errorf("%w: collection %s has size %d, embedder produces %d", ragErrors.ErrDimensionMismatch, collectionName, size, dimension)
		}
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func createPayloadIndexes(ctx context.Context, client *qdrant.Client, collectionName string) {
	indexes := map[string]qdrant.FieldType{
		fieldSourceDocId: qdrant.FieldType_FieldTypeKeyword,
		fieldJournal:     qdrant.FieldType_FieldTypeKeyword,
		fieldYear:        qdrant.FieldType_FieldTypeInteger,
	}
	for field, fieldType := range indexes {
		_, err := client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collectionName,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			logger.Warn("payload index not created", "field", field, "error", err)
		}
	}
}
