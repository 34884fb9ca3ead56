package cmd

import (
	"fmt"
	"os"

	"github.com/ragkit/ragkit/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func runVersion() error {
	fmt.Printf("ragkit %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  Embedder: %s\n", cfg.EmbedderModel)
	fmt.Printf("  Table: %s\n", cfg.TableName)
	fmt.Printf("  Top K: %d\n", cfg.TopK)
	fmt.Printf("  Memory window: %d\n", cfg.MemoryWindow)
	fmt.Printf("  Port: %d\n", cfg.Port)

	switch {
	case cfg.HasPostgres():
		fmt.Println("  Backend: postgres")
	case cfg.HasSupabase():
		fmt.Println("  Backend: supabase")
	default:
		fmt.Println("  Backend: not configured")
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fmt.Println("  GEMINI_API_KEY: configured")
	} else {
		fmt.Println("  GEMINI_API_KEY: not set")
		fmt.Println()
		fmt.Println("Hint: set the GEMINI_API_KEY environment variable")
		fmt.Println("  export GEMINI_API_KEY=your-api-key")
	}

	return nil
}
