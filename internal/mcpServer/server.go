// Package mcpServer exposes search and document lookups as MCP tools so an assistant can
// query the corpus directly.
package mcpServer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "0.1.0"

var ErrMissingService = errors.New("mcp: retrieval service is required")

// Retriever is the part of the rag service the tools need.
type Retriever interface {
	Search(ctx context.Context, query commonModels.SearchQuery) (commonModels.SearchResponse, error)
	GetDocument(ctx context.Context, sourceDocId string) (commonModels.DocumentView, error)
	DocumentStats(ctx context.Context, sourceDocId string) (commonModels.DocumentStats, error)
}

type Server struct {
	svc    Retriever
	server *mcp.Server
	logger *logger_i.Logger
}

func NewServer(svc Retriever) (*Server, error) {
	if svc == nil {
		return nil, ErrMissingService
	}
	s := &Server{
		svc:    svc,
		server: mcp.NewServer(&mcp.Implementation{Name: "journalrag", Version: Version}, nil),
		logger: logger_i.NewLogger("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client goes away.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	s.logger.Info("MCP server listening", "address", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
