package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/ragkit/ragkit/api"
	"github.com/ragkit/ragkit/internal/app"
	"github.com/ragkit/ragkit/internal/chat"
	"github.com/ragkit/ragkit/internal/config"
)

// defaultRateLimit is the per-second request budget when RAGKIT_RATE_LIMIT
// is unset.
const defaultRateLimit = 20

// parseRateEnv reads a non-negative integer from the environment.
// Returns the fallback if unset or invalid.
func parseRateEnv(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	addr, err := resolveServeAddr(args, cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("resolving listen address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	pingers := map[string]api.Pinger{"documents": a.Documents}
	if a.Pool != nil {
		pingers["database"] = a.Pool
	}

	srv := api.NewServer(api.ServerConfig{
		Sessions:    a.Sessions,
		Documents:   a.Documents,
		ChatFlow:    chat.NewFlow(a.Genkit, a.Agent),
		Logger:      logger,
		Pingers:     pingers,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   rate.Limit(parseRateEnv("RAGKIT_RATE_LIMIT", defaultRateLimit)),
		RateBurst:   parseRateEnv("RAGKIT_RATE_BURST", 0),
	})

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/*",
		"health", "/health, /ready",
	)
	return srv.Run(ctx, addr)
}
