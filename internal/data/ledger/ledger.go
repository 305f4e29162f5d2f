// Package ledger is the relational side of the store: documents, per-chunk usage counters and the search log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const storeName = "ledger"

type Ledger struct {
	db     *gorm.DB
	logger *logger_i.Logger
}

type gormWriter struct {
	logger *logger_i.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}

// Open connects to sqlite or postgres. For sqlite the parent directory of a file DSN is created.
func Open(driver, dsn string) (*Ledger, error) {
	logger := logger_i.NewLogger("ledger").With("driver", driver)

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if err := ensureDir(dsn); err != nil {
			return nil, ragErrors.Store(storeName, "open", err)
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.New(gormWriter{logger: logger}, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, ragErrors.Store(storeName, "open", err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, ragErrors.Store(storeName, "open", err)
		}
		// one writer; also keeps a :memory: database alive across calls
		sqlDB.SetMaxOpenConns(1)
	}
	return &Ledger{db: db, logger: logger}, nil
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (l *Ledger) Migrate(ctx context.Context) error {
	err := l.db.WithContext(ctx).AutoMigrate(&Document{}, &Chunk{}, &SearchLog{})
	return ragErrors.Store(storeName, "migrate", err)
}

func (l *Ledger) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return ragErrors.Store(storeName, "ping", err)
	}
	return ragErrors.Store(storeName, "ping", sqlDB.PingContext(ctx))
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertChunks records documents and chunk metadata. Existing usage counters are left untouched.
func (l *Ledger) UpsertChunks(ctx context.Context, chunks []commonModels.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make(map[string]Document)
	var order []string
	rows := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, seen := docs[c.SourceDocId]; !seen {
			order = append(order, c.SourceDocId)
		}
		docs[c.SourceDocId] = Document{
			SourceDocId: c.SourceDocId,
			Title:       DocumentTitle(c.JournalName, c.Year),
			JournalName: c.JournalName,
			Year:        c.Year,
		}
		rows = append(rows, Chunk{
			ChunkId:     c.ChunkId,
			SourceDocId: c.SourceDocId,
			ChunkIndex:  c.ChunkIndex,
			Section:     c.Section,
			Subsection:  c.Subsection,
			PageNumber:  c.PageNumber,
			TextLength:  len([]rune(c.Text)),
		})
	}
	docRows := make([]Document, 0, len(order))
	for _, id := range order {
		docRows = append(docRows, docs[id])
	}
	rows = lastWins(rows)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "journal_name", "year", "updated_at"}),
		}).Create(&docRows).Error
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_doc_id", "chunk_index", "section", "subsection", "page_number", "text_length", "updated_at",
			}),
		}).Create(&rows).Error
	})
	return ragErrors.Store(storeName, "upsert_chunks", err)
}

// DocumentTitle is "<journal> (<year>)", or just the journal when the year is unknown.
func DocumentTitle(journal string, year int) string {
	if year == 0 {
		return journal
	}
	return fmt.Sprintf("%s (%d)", journal, year)
}

// lastWins drops earlier duplicates so one INSERT never touches the same key twice.
func lastWins(rows []Chunk) []Chunk {
	pos := make(map[string]int, len(rows))
	out := make([]Chunk, 0, len(rows))
	for _, r := range rows {
		if i, ok := pos[r.ChunkId]; ok {
			out[i] = r
			continue
		}
		pos[r.ChunkId] = len(out)
		out = append(out, r)
	}
	return out
}

// IncrementUsage adds one to each known chunk and returns the resulting absolute counts.
// Unknown ids are ignored. The increment is a single UPDATE so concurrent callers never lose counts.
func (l *Ledger) IncrementUsage(ctx context.Context, chunkIds []string, at time.Time) (map[string]int64, error) {
	if len(chunkIds) == 0 {
		return map[string]int64{}, nil
	}
	var counts map[string]int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Chunk{}).
			Where("chunk_id IN ?", chunkIds).
			Updates(map[string]interface{}{
				"usage_count":   gorm.Expr("usage_count + ?", 1),
				"last_accessed": at,
			}).Error
		if err != nil {
			return err
		}
		counts, err = usageCounts(tx, chunkIds)
		return err
	})
	if err != nil {
		return nil, ragErrors.Store(storeName, "increment_usage", err)
	}
	return counts, nil
}

func (l *Ledger) UsageCounts(ctx context.Context, chunkIds []string) (map[string]int64, error) {
	if len(chunkIds) == 0 {
		return map[string]int64{}, nil
	}
	counts, err := usageCounts(l.db.WithContext(ctx), chunkIds)
	if err != nil {
		return nil, ragErrors.Store(storeName, "usage_counts", err)
	}
	return counts, nil
}

func usageCounts(tx *gorm.DB, chunkIds []string) (map[string]int64, error) {
	var rows []Chunk
	if err := tx.Select("chunk_id", "usage_count").Where("chunk_id IN ?", chunkIds).Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ChunkId] = r.UsageCount
	}
	return counts, nil
}

func (l *Ledger) Document(ctx context.Context, sourceDocId string) (*Document, error) {
	var doc Document
	err := l.db.WithContext(ctx).Where("source_doc_id = ?", sourceDocId).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ragErrors.NotFound("document", sourceDocId)
	}
	if err != nil {
		return nil, ragErrors.Store(storeName, "document", err)
	}
	return &doc, nil
}

// RecordDocumentAccess counts one lookup of the document and returns the updated row.
func (l *Ledger) RecordDocumentAccess(ctx context.Context, sourceDocId string, at time.Time) (*Document, error) {
	var doc Document
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Document{}).
			Where("source_doc_id = ?", sourceDocId).
			Updates(map[string]interface{}{
				"access_count":  gorm.Expr("access_count + ?", 1),
				"last_accessed": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("source_doc_id = ?", sourceDocId).First(&doc).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ragErrors.NotFound("document", sourceDocId)
	}
	if err != nil {
		return nil, ragErrors.Store(storeName, "record_document_access", err)
	}
	return &doc, nil
}

// DocumentChunks lists a document's chunks ordered by chunk index.
func (l *Ledger) DocumentChunks(ctx context.Context, sourceDocId string) ([]Chunk, error) {
	var rows []Chunk
	err := l.db.WithContext(ctx).
		Where("source_doc_id = ?", sourceDocId).
		Order("chunk_index ASC").Order("chunk_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, ragErrors.Store(storeName, "document_chunks", err)
	}
	return rows, nil
}

func (l *Ledger) LogSearch(ctx context.Context, entry commonModels.SearchLog) error {
	row := SearchLog{
		Query:        entry.Query,
		K:            entry.K,
		MinScore:     entry.MinScore,
		ResultCount:  entry.ResultCount,
		SearchTimeMs: entry.SearchTimeMs,
		Generated:    entry.Generated,
	}
	return ragErrors.Store(storeName, "log_search", l.db.WithContext(ctx).Create(&row).Error)
}

func (l *Ledger) SearchStats(ctx context.Context) (commonModels.SearchStats, error) {
	var stats commonModels.SearchStats
	var agg struct {
		Total      int64
		AvgTime    float64
		AvgResults float64
	}
	db := l.db.WithContext(ctx)

	err := db.Model(&SearchLog{}).
		Select("COUNT(*) AS total, COALESCE(AVG(search_time_ms), 0) AS avg_time, COALESCE(AVG(result_count), 0) AS avg_results").
		Scan(&agg).Error
	if err != nil {
		return stats, ragErrors.Store(storeName, "search_stats", err)
	}
	if err := db.Model(&Document{}).Count(&stats.TotalDocuments).Error; err != nil {
		return stats, ragErrors.Store(storeName, "search_stats", err)
	}
	if err := db.Model(&Chunk{}).Count(&stats.TotalChunks).Error; err != nil {
		return stats, ragErrors.Store(storeName, "search_stats", err)
	}
	stats.TotalSearches = agg.Total
	stats.AvgSearchTimeMs = agg.AvgTime
	stats.AvgResultCount = agg.AvgResults
	return stats, nil
}
