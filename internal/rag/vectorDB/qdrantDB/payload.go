package qdrantDB

import (
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	fieldChunkId     = "chunk_id"
	fieldText        = "text"
	fieldSourceDocId = "source_doc_id"
	fieldChunkIndex  = "chunk_index"
	fieldJournal     = "journal_name"
	fieldYear        = "year"
	fieldSection     = "section"
	fieldSubsection  = "subsection"
	fieldPage        = "page_number"
	fieldIngestedAt  = "ingested_at"
	fieldUsageCount  = "usage_count"
)

// Qdrant ids must be uints or UUIDs; chunk ids are arbitrary strings.
var pointNamespace = uuid.MustParse("5b0c8f6e-3c1d-4e8a-9a57-2f4f3f0c9d11")

func pointID(chunkId string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkId)).String()
}

func toPayload(c commonModels.Chunk, ingestedAt int64) map[string]any {
	return map[string]any{
		fieldChunkId:     c.ChunkId,
		fieldText:        c.Text,
		fieldSourceDocId: c.SourceDocId,
		fieldChunkIndex:  int64(c.ChunkIndex),
		fieldJournal:     c.JournalName,
		fieldYear:        int64(c.Year),
		fieldSection:     c.Section,
		fieldSubsection:  c.Subsection,
		fieldPage:        int64(c.PageNumber),
		fieldIngestedAt:  ingestedAt,
	}
}

func fromPayload(p map[string]*qdrant.Value) commonModels.Chunk {
	return commonModels.Chunk{
		ChunkId: p[fieldChunkId].GetStringValue(),
		Text:    p[fieldText].GetStringValue(),
		ChunkMetadata: commonModels.ChunkMetadata{
			SourceDocId: p[fieldSourceDocId].GetStringValue(),
			ChunkIndex:  int(p[fieldChunkIndex].GetIntegerValue()),
			JournalName: p[fieldJournal].GetStringValue(),
			Year:        int(p[fieldYear].GetIntegerValue()),
			Section:     p[fieldSection].GetStringValue(),
			Subsection:  p[fieldSubsection].GetStringValue(),
			PageNumber:  int(p[fieldPage].GetIntegerValue()),
		},
	}
}

func buildFilter(f *commonModels.SearchFilter) *qdrant.Filter {
	if f == nil || f.IsEmpty() {
		return nil
	}
	var must []*qdrant.Condition
	if f.Journal != "" {
		must = append(must, qdrant.NewMatch(fieldJournal, f.Journal))
	}
	if f.YearFrom != 0 || f.YearTo != 0 {
		r := &qdrant.Range{}
		if f.YearFrom != 0 {
			r.Gte = qdrant.PtrOf(float64(f.YearFrom))
		}
		if f.YearTo != 0 {
			r.Lte = qdrant.PtrOf(float64(f.YearTo))
			// year 0 means unknown and must not satisfy an upper bound
			if f.YearFrom == 0 {
				r.Gte = qdrant.PtrOf(1.0)
			}
		}
		must = append(must, qdrant.NewRange(fieldYear, r))
	}
	return &qdrant.Filter{Must: must}
}
