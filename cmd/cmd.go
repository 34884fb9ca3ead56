// Package cmd provides the CLI commands for ragkit.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - ask: one-shot question answering from the terminal
//   - docs: document management (list, add, delete)
//   - sessions: session management (list, show, delete)
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the ragkit CLI.
func Execute() error {
	// Initialize logger once at entry point. Logs go to stderr so command
	// output on stdout stays clean.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ask":
		return runAsk()
	case "docs":
		return runDocs()
	case "sessions":
		return runSessions()
	case "version", "--version", "-v":
		return runVersion()
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("ragkit - Retrieval-augmented question answering over your documents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragkit serve [addr]             Start HTTP API server (default: 0.0.0.0:8501)")
	fmt.Println("  ragkit ask <question>           Ask a question and print the answer")
	fmt.Println("  ragkit docs list                List stored documents")
	fmt.Println("  ragkit docs add <title> <text>  Add a document")
	fmt.Println("  ragkit docs delete <id>         Delete a document")
	fmt.Println("  ragkit sessions list            List chat sessions")
	fmt.Println("  ragkit sessions show <id>       Show a session's messages")
	fmt.Println("  ragkit sessions delete <id>     Delete a session")
	fmt.Println("  ragkit --version                Show version information")
	fmt.Println("  ragkit --help                   Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DATABASE_URL       Postgres connection string (preferred backend)")
	fmt.Println("  SUPABASE_URL       Supabase project URL (REST backend)")
	fmt.Println("  SUPABASE_KEY       Supabase service key")
	fmt.Println("  TABLE_NAME         Documents table name (default: documents)")
	fmt.Println("  PORT               Server port (default: 8501)")
	fmt.Println("  DEBUG              Optional: enable debug logging")
}
