package commonModels

import "time"

// RawChunk is a chunk record as it arrives on upload. Pointers distinguish "missing" from zero values.
type RawChunk struct {
	ChunkId     *string `json:"chunk_id"`
	Text        *string `json:"text"`
	ChunkIndex  *int    `json:"chunk_index"`
	SourceDocId *string `json:"source_doc_id"`
	JournalName *string `json:"journal_name,omitempty"`
	Year        *int    `json:"year,omitempty"`
	Section     *string `json:"section,omitempty"`
	Subsection  *string `json:"subsection,omitempty"`
	PageNumber  *int    `json:"page_number,omitempty"`
}

type UploadBatch struct {
	SchemaVersion string     `json:"schema_version"`
	Chunks        []RawChunk `json:"chunks"`
}

// ChunkMetadata is the metadata snapshot stored next to each vector.
type ChunkMetadata struct {
	SourceDocId string `json:"source_doc_id"`
	ChunkIndex  int    `json:"chunk_index"`
	JournalName string `json:"journal_name"`
	Year        int    `json:"year"` // 0 = unknown
	Section     string `json:"section"`
	Subsection  string `json:"subsection,omitempty"`
	PageNumber  int    `json:"page_number"` // 0 = unknown
}

type Chunk struct {
	ChunkId string `json:"chunk_id"`
	Text    string `json:"text"`
	ChunkMetadata
}

type RejectedChunk struct {
	Index   int      `json:"index"`
	ChunkId string   `json:"chunk_id,omitempty"`
	Record  RawChunk `json:"record"`
	Reason  string   `json:"reason"`
}

type NormalizeResult struct {
	Accepted []Chunk
	Rejected []RejectedChunk
}

type UploadResult struct {
	Accepted    []string        `json:"accepted"`
	Rejected    []RejectedChunk `json:"rejected"`
	NotEmbedded []string        `json:"not_embedded,omitempty"`
}

// SearchFilter narrows a query by journal and an inclusive year range. Zero fields are unset.
type SearchFilter struct {
	Journal  string `json:"journal,omitempty"`
	YearFrom int    `json:"year_from,omitempty"`
	YearTo   int    `json:"year_to,omitempty"`
}

func (f SearchFilter) IsEmpty() bool {
	return f.Journal == "" && f.YearFrom == 0 && f.YearTo == 0
}

func (f SearchFilter) Matches(m ChunkMetadata) bool {
	if f.Journal != "" && m.JournalName != f.Journal {
		return false
	}
	if f.YearFrom != 0 && m.Year < f.YearFrom {
		return false
	}
	if f.YearTo != 0 && (m.Year == 0 || m.Year > f.YearTo) {
		return false
	}
	return true
}

type SearchQuery struct {
	Query          string
	K              int
	MinScore       float64
	Filter         SearchFilter
	GenerateAnswer bool
}

// SearchResult scores are cosine similarity mapped to [0,1]; higher is closer.
type SearchResult struct {
	ChunkId  string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Score    float64       `json:"similarity_score"`
	Metadata ChunkMetadata `json:"metadata"`
}

type GenerationStatus string

const (
	GenerationOK          GenerationStatus = "ok"
	GenerationUnavailable GenerationStatus = "unavailable"
	GenerationNoGrounding GenerationStatus = "no_grounding"
)

type GeneratedAnswer struct {
	AnswerText string           `json:"answer_text"`
	Citations  []string         `json:"citations"`
	Status     GenerationStatus `json:"generation_status"`
	Confidence float64          `json:"confidence"`
}

type SearchResponse struct {
	Results    []SearchResult   `json:"results"`
	Answer     *GeneratedAnswer `json:"answer,omitempty"`
	SearchTime time.Duration    `json:"-"`
}

type UsageRecord struct {
	ChunkId      string     `json:"chunk_id"`
	ChunkIndex   int        `json:"chunk_index"`
	Section      string     `json:"section"`
	UsageCount   int64      `json:"usage_count"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

type DocumentStats struct {
	SourceDocId        string         `json:"source_doc_id"`
	TotalChunks        int            `json:"total_chunks"`
	ChunksBySection    map[string]int `json:"chunks_by_section"`
	TotalUsage         int64          `json:"total_usage"`
	MostPopularSection string         `json:"most_popular_section"`
	LastAccessed       *time.Time     `json:"last_accessed,omitempty"`
	AverageChunkLength float64        `json:"average_chunk_length"`
	Chunks             []UsageRecord  `json:"chunks,omitempty"`
}

// DocumentView is what a document lookup returns. AccessCount and LastAccessed count lookups of
// the document itself, which includes the one that produced this view.
type DocumentView struct {
	SourceDocId  string        `json:"source_doc_id"`
	Title        string        `json:"title"`
	JournalName  string        `json:"journal_name"`
	Year         int           `json:"year"`
	AccessCount  int64         `json:"access_count"`
	LastAccessed *time.Time    `json:"last_accessed,omitempty"`
	Chunks       []Chunk       `json:"chunks"`
	Stats        DocumentStats `json:"stats"`
}

type SearchLog struct {
	Query        string
	K            int
	MinScore     float64
	ResultCount  int
	SearchTimeMs float64
	Generated    bool
}

type SearchStats struct {
	TotalSearches   int64   `json:"total_searches"`
	AvgSearchTimeMs float64 `json:"avg_search_time_ms"`
	AvgResultCount  float64 `json:"avg_result_count"`
	TotalDocuments  int64   `json:"total_documents"`
	TotalChunks     int64   `json:"total_chunks"`
}

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var ERR DocType = "ERROR"

type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
)

type HealthReport struct {
	Status     HealthStatus      `json:"status"`
	Components map[string]string `json:"components"`
}
