package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
)

var textCleaner = strings.NewReplacer("\x00", "", "\ufeff", "")

// Normalize validates and cleans raw records. An unsupported schema version fails the whole
// batch; otherwise each record is either accepted or rejected on its own, input order kept.
func Normalize(schemaVersion string, records []commonModels.RawChunk) (commonModels.NormalizeResult, error) {
	return normalize(schemaVersion, records, time.Now().Year()+1)
}

func normalize(schemaVersion string, records []commonModels.RawChunk, maxYear int) (commonModels.NormalizeResult, error) {
	var res commonModels.NormalizeResult
	if v := strings.TrimSpace(schemaVersion); v != "" && v != config.SupportedSchemaVersion {
		return res, fmt.Errorf("%w: %q", ragErrors.ErrUnsupportedSchema, schemaVersion)
	}

	for i, rec := range records {
		chunk, err := normalizeRecord(rec, maxYear)
		if err != nil {
			res.Rejected = append(res.Rejected, commonModels.RejectedChunk{
				Index:   i,
				ChunkId: deref(rec.ChunkId),
				Record:  rec,
				Reason:  err.Error(),
			})
			continue
		}
		res.Accepted = append(res.Accepted, chunk)
	}
	return res, nil
}

func normalizeRecord(rec commonModels.RawChunk, maxYear int) (commonModels.Chunk, error) {
	var c commonModels.Chunk

	if rec.ChunkId == nil || strings.TrimSpace(*rec.ChunkId) == "" {
		return c, ragErrors.Validation("chunk_id", "missing")
	}
	if rec.Text == nil {
		return c, ragErrors.Validation("text", "missing")
	}
	if rec.ChunkIndex == nil {
		return c, ragErrors.Validation("chunk_index", "missing")
	}
	if rec.SourceDocId == nil || strings.TrimSpace(*rec.SourceDocId) == "" {
		return c, ragErrors.Validation("source_doc_id", "missing")
	}
	if *rec.ChunkIndex < 0 {
		return c, ragErrors.Validation("chunk_index", "must be >= 0")
	}
	// ids are embedded in citation markers, which end at the first ']'
	if strings.Contains(*rec.ChunkId, "]") {
		return c, ragErrors.Validation("chunk_id", "must not contain ']'")
	}

	text := CleanText(*rec.Text)
	if text == "" {
		return c, ragErrors.Validation("text", "empty after normalization")
	}

	c.ChunkId = strings.TrimSpace(*rec.ChunkId)
	c.Text = text
	c.ChunkIndex = *rec.ChunkIndex
	c.SourceDocId = strings.TrimSpace(*rec.SourceDocId)
	c.JournalName = orDefault(rec.JournalName, config.UnknownJournal)
	c.Section = orDefault(rec.Section, config.UnknownSection)
	if rec.Subsection != nil {
		c.Subsection = strings.TrimSpace(*rec.Subsection)
	}

	if rec.Year != nil {
		if *rec.Year < config.MinYear || *rec.Year > maxYear {
			return commonModels.Chunk{}, ragErrors.Validation("year", fmt.Sprintf("must be between %d and %d", config.MinYear, maxYear))
		}
		c.Year = *rec.Year
	}
	if rec.PageNumber != nil {
		if *rec.PageNumber < 0 {
			return commonModels.Chunk{}, ragErrors.Validation("page_number", "must be >= 0")
		}
		c.PageNumber = *rec.PageNumber
	}
	return c, nil
}

// CleanText strips NUL and BOM characters, drops invalid UTF-8 and collapses whitespace runs.
func CleanText(s string) string {
	s = strings.ToValidUTF8(textCleaner.Replace(s), "")
	return strings.Join(strings.Fields(s), " ")
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	if t := CleanText(*v); t != "" {
		return t
	}
	return def
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
