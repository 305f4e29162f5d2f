package ingest

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageExtractTimeout = 10 * time.Second

func extractText(path string, contentType commonModels.DocType, log *logger_i.Logger) ([]rawPage, error) {
	switch contentType {
	case commonModels.PDF:
		return extractPDF(path, log)
	case commonModels.DOCX:
		return extractDocx(path, log)
	case commonModels.TXT:
		return extractPlain(path)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

func extractPDF(path string, log *logger_i.Logger) ([]rawPage, error) {
	f, err := pdf.Open(path)
	if err != nil {
		log.Error("failed opening of pdf file", "error", err)
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []rawPage
	numPages := f.NumPage()
	log.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			log.Debug("extractPDF: empty page", "page", i)
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// keep going; one unreadable page should not lose the document
			log.Warn("Error parsing page content", "page", i, "error", err)
			continue
		}

		pages = append(pages, rawPage{
			Number:  i,
			Content: content,
		})
	}
	if len(pages) == 0 {
		return nil, errors.New("no extractable text in pdf")
	}
	return pages, nil
}

// extractDocx reads .docx, .odt and .rtf. Page breaks are not tracked, so everything is page 1.
func extractDocx(path string, log *logger_i.Logger) ([]rawPage, error) {
	text, err := cat.File(path)
	if err != nil {
		log.Error("Error extracting content from doc", "error", err)
		return nil, fmt.Errorf("failed to extract document: %w", err)
	}
	return []rawPage{{Number: 1, Content: text}}, nil
}

func extractPlain(path string) ([]rawPage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return []rawPage{{Number: 1, Content: string(b)}}, nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		return "", errors.New("page extraction timed out")
	}
}
