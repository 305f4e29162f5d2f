package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/JournalRAG/internal/adapter"
	"github.com/akolanti/JournalRAG/internal/api"
	"github.com/akolanti/JournalRAG/internal/mcpServer"
	"github.com/spf13/cobra"
)

var errRedisOffline = errors.New("redis job store is offline and the in-memory fallback is disabled")

var (
	mcpHTTPAddr string

	searchK        int
	searchMinScore float64
	searchJournal  string
	searchYearFrom int
	searchYearTo   int
	searchAnswer   bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve search and document tools over the Model Context Protocol",
	Long: `Start an MCP server exposing the search, get_document and document_stats tools.

Stdio is used by default so an assistant can launch the binary directly:
  {
    "mcpServers": {
      "journalrag": { "command": "/path/to/journalrag", "args": ["mcp"] }
    }
  }

Use --http to serve the streamable HTTP transport instead.`,
	RunE: runMCP,
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file.json]",
	Short: "Upload a JSON batch of pre-chunked records",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a similarity search and print the results as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ledger tables",
	RunE:  runMigrate,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")

	searchCmd.Flags().IntVar(&searchK, "k", 0, "number of results (default 10, max 50)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "minimum similarity score in [0,1]")
	searchCmd.Flags().StringVar(&searchJournal, "journal", "", "only this journal")
	searchCmd.Flags().IntVar(&searchYearFrom, "year-from", 0, "earliest year, inclusive")
	searchCmd.Flags().IntVar(&searchYearTo, "year-to", 0, "latest year, inclusive")
	searchCmd.Flags().BoolVar(&searchAnswer, "answer", false, "also generate a cited answer")

	rootCmd.AddCommand(mcpCmd, uploadCmd, searchCmd, migrateCmd)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	rt, err := buildRuntime(ctx, settings)
	if err != nil {
		return err
	}
	defer rt.close()

	srv, err := mcpServer.NewServer(rt.service)
	if err != nil {
		return err
	}
	if mcpHTTPAddr != "" {
		return srv.RunHTTP(ctx, mcpHTTPAddr)
	}
	return srv.Run(ctx)
}

func runUpload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var req api.UploadRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	rt, err := buildRuntime(ctx, settings)
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.service.Upload(ctx, adapter.ToUploadBatch(req))
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return printJSON(cmd, adapter.ToUploadResponse(res))
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	rt, err := buildRuntime(ctx, settings)
	if err != nil {
		return err
	}
	defer rt.close()

	resp, err := rt.service.Search(ctx, adapter.ToSearchQuery(api.SearchRequest{
		Query:          args[0],
		K:              searchK,
		MinScore:       searchMinScore,
		Journal:        searchJournal,
		YearFrom:       searchYearFrom,
		YearTo:         searchYearTo,
		GenerateAnswer: searchAnswer,
	}))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printJSON(cmd, adapter.ToSearchResponse(resp))
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	led, err := openLedger(ctx, settings.Ledger)
	if err != nil {
		return err
	}
	defer led.Close()
	cmd.PrintErrln("ledger migrated:", settings.Ledger.Driver)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
