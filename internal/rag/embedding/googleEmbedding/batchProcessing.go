package googleEmbedding

import (
	"errors"

	"github.com/akolanti/JournalRAG/internal/rag/embedding"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// classifyError marks rate limits, timeouts and server-side failures as transient.
func classifyError(err error, log *logger_i.Logger) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted:
			log.Warn("Rate limit hit", "error", err)
			return embedding.MarkTransient(err)
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return embedding.MarkTransient(err)
		}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && embedding.IsRetryableHTTPStatus(apiErr.Code) {
		if apiErr.Code == 429 {
			log.Warn("Rate limit hit", "error", err)
		}
		return embedding.MarkTransient(err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && embedding.IsRetryableHTTPStatus(apiErrPtr.Code) {
		return embedding.MarkTransient(err)
	}
	return err
}
