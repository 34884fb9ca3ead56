package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ragkit/ragkit/db"
	"github.com/ragkit/ragkit/internal/chat"
	"github.com/ragkit/ragkit/internal/config"
	"github.com/ragkit/ragkit/internal/docstore"
	"github.com/ragkit/ragkit/internal/retrieval"
	"github.com/ragkit/ragkit/internal/security"
	"github.com/ragkit/ragkit/internal/session"
	"github.com/ragkit/ragkit/internal/supabase"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if err := cfg.ValidateServe(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so Genkit's TracerProvider picks up the processor.
	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai plugin")
	}
	a.Genkit = g
	slog.Info("initialized Genkit with googleai plugin", "model", cfg.ModelName)

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	documents, vector, err := provideDocumentBackend(cfg, pool, embedder)
	if err != nil {
		return nil, err
	}
	a.Documents = documents

	retriever, err := retrieval.New(retrieval.Config{
		Source: documents,
		Vector: vector,
		TopK:   cfg.TopK,
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}
	a.Retriever = retriever

	a.Sessions = provideSessionStore(pool)

	agent, err := chat.New(chat.Config{
		Genkit:       g,
		Sessions:     a.Sessions,
		Retriever:    retriever,
		Logger:       slog.Default(),
		ModelName:    "googleai/" + cfg.ModelName,
		MemoryWindow: cfg.MemoryWindow,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}
	a.Agent = agent

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export when an endpoint is
// configured. Returns a shutdown function (no-op when tracing is disabled).
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Genkit's TracerProvider reads these at init.
	// SAFETY: called once during startup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		slog.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("trace export enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool creates the connection pool and runs migrations. Returns a
// nil pool when no DATABASE_URL is configured.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.HasPostgres() {
		return nil, nil
	}

	migrateURL, err := cfg.MigrateURL()
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(migrateURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	slog.Info("database connected", "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// provideDocumentBackend picks the storage backend. Direct Postgres wins
// when both are configured because it adds vector search.
func provideDocumentBackend(cfg *config.Config, pool *pgxpool.Pool, embedder ai.Embedder) (DocumentBackend, retrieval.VectorSearcher, error) {
	if pool != nil {
		store, err := docstore.NewStore(pool, embedder, cfg.TableName, slog.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("creating document store: %w", err)
		}
		slog.Info("using direct Postgres document backend", "table", cfg.TableName)
		return store, store, nil
	}

	// Loopback is only allowed for a local Supabase CLI stack over http.
	allowLoopback := strings.HasPrefix(cfg.SupabaseURL, "http://")
	validator := security.NewURLValidator(allowLoopback)

	client, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.TableName, validator)
	if err != nil {
		return nil, nil, fmt.Errorf("creating supabase client: %w", err)
	}
	slog.Info("using Supabase REST document backend", "table", cfg.TableName)
	return client, nil, nil
}

// provideSessionStore picks durable Postgres sessions when a pool exists,
// in-memory otherwise.
func provideSessionStore(pool *pgxpool.Pool) session.Store {
	if pool != nil {
		store, err := session.NewPGStore(pool, slog.Default())
		if err == nil {
			return store
		}
		slog.Warn("creating postgres session store, falling back to memory", "error", err)
	}
	slog.Info("using in-memory session store; history will not survive restarts")
	return session.NewMemStore()
}
