package ledger

import "time"

// Document is one source document. Title, journal and year come from the most recent upload;
// AccessCount and LastAccessed count direct lookups of the document.
type Document struct {
	SourceDocId  string `gorm:"primaryKey;size:255"`
	Title        string `gorm:"size:512"`
	JournalName  string `gorm:"size:255;index"`
	Year         int
	AccessCount  int64 `gorm:"not null;default:0"`
	LastAccessed *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk carries the mutable per-chunk counters. Text and vectors live in the vector store.
type Chunk struct {
	ChunkId      string `gorm:"primaryKey;size:255"`
	SourceDocId  string `gorm:"size:255;index;not null"`
	ChunkIndex   int
	Section      string `gorm:"size:255"`
	Subsection   string `gorm:"size:255"`
	PageNumber   int
	TextLength   int
	UsageCount   int64 `gorm:"not null;default:0"`
	LastAccessed *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SearchLog struct {
	ID           uint `gorm:"primaryKey"`
	Query        string
	K            int
	MinScore     float64
	ResultCount  int
	SearchTimeMs float64
	Generated    bool
	CreatedAt    time.Time `gorm:"index"`
}
