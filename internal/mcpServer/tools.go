package mcpServer

import (
	"context"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type SearchInput struct {
	Query          string  `json:"query" jsonschema:"natural-language question or topic"`
	K              int     `json:"k,omitempty" jsonschema:"maximum number of chunks to return (default 10, max 50)"`
	MinScore       float64 `json:"min_score,omitempty" jsonschema:"drop chunks scoring below this similarity in [0,1]"`
	Journal        string  `json:"journal,omitempty" jsonschema:"only chunks from this journal"`
	YearFrom       int     `json:"year_from,omitempty" jsonschema:"earliest publication year, inclusive"`
	YearTo         int     `json:"year_to,omitempty" jsonschema:"latest publication year, inclusive"`
	GenerateAnswer bool    `json:"generate_answer,omitempty" jsonschema:"also synthesize an answer citing the returned chunks"`
}

type SearchResultOutput struct {
	ChunkId     string  `json:"chunk_id"`
	SourceDocId string  `json:"source_doc_id"`
	Journal     string  `json:"journal_name"`
	Year        int     `json:"year,omitempty"`
	Section     string  `json:"section"`
	Subsection  string  `json:"subsection,omitempty"`
	Score       float64 `json:"similarity_score"`
	Text        string  `json:"text"`
}

type AnswerOutput struct {
	Text       string   `json:"answer_text"`
	Citations  []string `json:"citations"`
	Status     string   `json:"generation_status"`
	Confidence float64  `json:"confidence"`
}

type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
	Answer  *AnswerOutput        `json:"answer,omitempty"`
}

type DocumentInput struct {
	SourceDocId string `json:"source_doc_id" jsonschema:"id of the document"`
}

type ChunkOutput struct {
	ChunkId    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	Section    string `json:"section"`
	Subsection string `json:"subsection,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Text       string `json:"text"`
}

type DocumentOutput struct {
	SourceDocId  string        `json:"source_doc_id"`
	Title        string        `json:"title"`
	JournalName  string        `json:"journal_name"`
	Year         int           `json:"year,omitempty"`
	AccessCount  int64         `json:"access_count"`
	LastAccessed string        `json:"last_accessed,omitempty"`
	Chunks       []ChunkOutput `json:"chunks"`
	TotalUsage   int64         `json:"total_usage"`
}

type ChunkUsageOutput struct {
	ChunkId      string `json:"chunk_id"`
	Section      string `json:"section"`
	UsageCount   int64  `json:"usage_count"`
	LastAccessed string `json:"last_accessed,omitempty"`
}

type StatsOutput struct {
	SourceDocId        string             `json:"source_doc_id"`
	TotalChunks        int                `json:"total_chunks"`
	ChunksBySection    map[string]int     `json:"chunks_by_section"`
	TotalUsage         int64              `json:"total_usage"`
	MostPopularSection string             `json:"most_popular_section"`
	AverageChunkLength float64            `json:"average_chunk_length"`
	LastAccessed       string             `json:"last_accessed,omitempty"`
	Chunks             []ChunkUsageOutput `json:"chunks"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over ingested research-paper chunks, optionally with a cited answer",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch a document's metadata and its chunks in reading order",
	}, s.handleGetDocument)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_stats",
		Description: "Usage statistics for a document: views per chunk and the most read section",
	}, s.handleDocumentStats)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	resp, err := s.svc.Search(ctx, commonModels.SearchQuery{
		Query:          input.Query,
		K:              input.K,
		MinScore:       input.MinScore,
		Filter:         commonModels.SearchFilter{Journal: input.Journal, YearFrom: input.YearFrom, YearTo: input.YearTo},
		GenerateAnswer: input.GenerateAnswer,
	})
	if err != nil {
		return nil, SearchOutput{}, s.toolError(ctx, "search", err)
	}

	out := SearchOutput{
		Results: make([]SearchResultOutput, len(resp.Results)),
		Count:   len(resp.Results),
	}
	for i, r := range resp.Results {
		out.Results[i] = SearchResultOutput{
			ChunkId:     r.ChunkId,
			SourceDocId: r.Metadata.SourceDocId,
			Journal:     r.Metadata.JournalName,
			Year:        r.Metadata.Year,
			Section:     r.Metadata.Section,
			Subsection:  r.Metadata.Subsection,
			Score:       r.Score,
			Text:        r.Text,
		}
	}
	if a := resp.Answer; a != nil {
		out.Answer = &AnswerOutput{
			Text:       a.AnswerText,
			Citations:  append([]string{}, a.Citations...),
			Status:     string(a.Status),
			Confidence: a.Confidence,
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetDocument(ctx context.Context, _ *mcp.CallToolRequest, input DocumentInput) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.svc.GetDocument(ctx, input.SourceDocId)
	if err != nil {
		return nil, DocumentOutput{}, s.toolError(ctx, "get_document", err)
	}
	out := DocumentOutput{
		SourceDocId:  doc.SourceDocId,
		Title:        doc.Title,
		JournalName:  doc.JournalName,
		Year:         doc.Year,
		AccessCount:  doc.AccessCount,
		LastAccessed: formatTime(doc.LastAccessed),
		Chunks:       make([]ChunkOutput, len(doc.Chunks)),
		TotalUsage:   doc.Stats.TotalUsage,
	}
	for i, c := range doc.Chunks {
		out.Chunks[i] = ChunkOutput{
			ChunkId:    c.ChunkId,
			ChunkIndex: c.ChunkIndex,
			Section:    c.Section,
			Subsection: c.Subsection,
			PageNumber: c.PageNumber,
			Text:       c.Text,
		}
	}
	return nil, out, nil
}

func (s *Server) handleDocumentStats(ctx context.Context, _ *mcp.CallToolRequest, input DocumentInput) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.svc.DocumentStats(ctx, input.SourceDocId)
	if err != nil {
		return nil, StatsOutput{}, s.toolError(ctx, "document_stats", err)
	}
	out := StatsOutput{
		SourceDocId:        stats.SourceDocId,
		TotalChunks:        stats.TotalChunks,
		ChunksBySection:    nonNilMap(stats.ChunksBySection),
		TotalUsage:         stats.TotalUsage,
		MostPopularSection: stats.MostPopularSection,
		AverageChunkLength: stats.AverageChunkLength,
		LastAccessed:       formatTime(stats.LastAccessed),
		Chunks:             make([]ChunkUsageOutput, len(stats.Chunks)),
	}
	for i, c := range stats.Chunks {
		out.Chunks[i] = ChunkUsageOutput{
			ChunkId:      c.ChunkId,
			Section:      c.Section,
			UsageCount:   c.UsageCount,
			LastAccessed: formatTime(c.LastAccessed),
		}
	}
	return nil, out, nil
}

// toolError hands the client the same safe message the HTTP API would show.
func (s *Server) toolError(ctx context.Context, tool string, err error) error {
	code, msg, _ := ragErrors.HTTPStatus(err)
	if code >= 500 {
		s.logger.WithTrace(ctx).Error("tool failed", "tool", tool, "error", err)
	}
	return &toolFailure{msg: msg, cause: err}
}

type toolFailure struct {
	msg   string
	cause error
}

func (e *toolFailure) Error() string { return e.msg }
func (e *toolFailure) Unwrap() error { return e.cause }

func nonNilMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
