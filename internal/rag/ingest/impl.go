package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
)

type rawPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// FileSource describes an uploaded file and the document it becomes.
type FileSource struct {
	Path        string
	SourceDocId string
	JournalName string
	Year        int
}

// IngestFile extracts text from a PDF, DOCX or TXT file, splits it into chunks with ids derived
// from the document id, and runs them through Upload. Re-ingesting the same file overwrites.
func (p *Pipeline) IngestFile(ctx context.Context, src FileSource) (commonModels.UploadResult, error) {
	log := p.logger.WithTrace(ctx).With("file", filepath.Base(src.Path), "sourceDocId", src.SourceDocId)

	docType := getDocType(src.Path)
	log.Debug("Processing document", "type", docType)
	if docType == commonModels.ERR {
		return commonModels.UploadResult{}, ragErrors.Validation("file", fmt.Sprintf("unsupported file type %q", filepath.Ext(src.Path)))
	}

	pages, err := extractText(src.Path, docType, log)
	if err != nil {
		return commonModels.UploadResult{}, err
	}
	raw := PrepareChunks(pages, src)
	log.Debug("Processing document", "pages", len(pages), "chunks", len(raw))

	return p.Upload(ctx, commonModels.UploadBatch{SchemaVersion: config.SupportedSchemaVersion, Chunks: raw})
}

// PrepareChunks splits each page and numbers chunks across the whole document.
func PrepareChunks(pages []rawPage, src FileSource) []commonModels.RawChunk {
	var all []commonModels.RawChunk
	index := 0
	for _, page := range pages {
		for _, text := range splitTextIntoChunks(page.Content, config.FileChunkSize, config.FileChunkOverlap) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			id := fmt.Sprintf("%s-%05d", src.SourceDocId, index)
			chunkIndex, pageNumber, docId := index, page.Number, src.SourceDocId
			chunk := commonModels.RawChunk{
				ChunkId:     &id,
				Text:        &text,
				ChunkIndex:  &chunkIndex,
				SourceDocId: &docId,
				PageNumber:  &pageNumber,
			}
			if src.JournalName != "" {
				journal := src.JournalName
				chunk.JournalName = &journal
			}
			if src.Year != 0 {
				year := src.Year
				chunk.Year = &year
			}
			all = append(all, chunk)
			index++
		}
	}
	return all
}

//splitter

func splitTextIntoChunks(text string, limit int, overlap int) []string {
	var chunks []string

	if len(text) <= limit {
		return []string{text}
	}

	// Separators ordered from "best" to "worst" for semantic meaning
	separators := []string{"\n\n", "\n", ". ", " "}

	splitChar := ""
	for _, s := range separators {
		if strings.Contains(text, s) {
			splitChar = s
			break
		}
	}

	var parts []string
	if splitChar == "" {
		parts = runes(text)
	} else {
		parts = strings.Split(text, splitChar)
	}
	var currentChunk strings.Builder

	for _, part := range parts {
		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			// start the next chunk with the tail of the previous one
			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = tail(currentChunk.String(), overlap)
			}

			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 && splitChar != "" {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}

// tail returns roughly the last n bytes of s without cutting a rune in half.
func tail(s string, n int) string {
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func getDocType(docPath string) commonModels.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".odt", ".rtf":
		return commonModels.DOCX
	case ".txt", ".md":
		return commonModels.TXT
	default:
		return commonModels.ERR
	}
}
