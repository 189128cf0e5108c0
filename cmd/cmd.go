// Package cmd provides CLI commands for relief.
//
// Commands:
//   - serve: HTTP API server (upload, ingest, crawl, chat)
//   - ask: one-shot grounded question answering
//   - ingest: index plain-text files from disk
//   - crawl: breadth-first crawl and index of a website
//   - mcp: Model Context Protocol server for IDE integration
//
// Signal handling and graceful shutdown are implemented for the
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/reliefhq/relief/internal/log"
)

// Version is injected at build time via ldflags.
var Version = "development"

// Execute is the main entry point for the relief CLI application.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	// Logs go to stderr: stdout is reserved for command output and,
	// in mcp mode, for JSON-RPC.
	logger := log.New(log.Config{Level: level, JSON: os.Getenv("RELIEF_LOG_JSON") != ""})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ask":
		return runAsk(logger)
	case "ingest":
		return runIngest(logger)
	case "crawl":
		return runCrawl(logger)
	case "mcp":
		return runMCP(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runVersion prints version information.
func runVersion() {
	fmt.Printf("relief %s\n", Version)
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Relief - Retrieval-grounded assistant for pressure relief valve engineering")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  relief serve [addr]        Start the HTTP API server (default: " + defaultServeAddr + ")")
	fmt.Println("  relief ask <question>      Answer a question from the indexed knowledge base")
	fmt.Println("  relief ingest <paths...>   Index plain-text files")
	fmt.Println("  relief crawl <seeds...>    Crawl and index a website")
	fmt.Println("      -domains a.com,b.com     Restrict the crawl to these domains")
	fmt.Println("      -max-pages n             Override the page budget")
	fmt.Println("  relief mcp                 Start the MCP server on stdio")
	fmt.Println("  relief --version           Show version information")
	fmt.Println("  relief --help              Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY             API key for the gemini provider")
	fmt.Println("  RELIEF_PROVIDER            Model provider: gemini, googleai or ollama")
	fmt.Println("  RELIEF_VECTOR_STORE        Vector backend: local or pgvector")
	fmt.Println("  DATABASE_URL               Postgres URL for the pgvector backend")
	fmt.Println("  DEBUG                      Enable debug logging")
}
