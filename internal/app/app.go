// Package app provides application initialization and dependency wiring.
//
// Setup assembles the full pipeline: tracing, database pool and migrations,
// Genkit with the Google AI plugin, the document backend (direct Postgres or
// Supabase REST), the retriever, session storage, and the chat agent.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragkit/ragkit/internal/chat"
	"github.com/ragkit/ragkit/internal/config"
	"github.com/ragkit/ragkit/internal/document"
	"github.com/ragkit/ragkit/internal/retrieval"
	"github.com/ragkit/ragkit/internal/session"
)

// DocumentBackend is the document storage surface the application needs.
// Both docstore.Store and supabase.Client implement it.
type DocumentBackend interface {
	retrieval.Source
	List(ctx context.Context, limit, offset int) ([]document.Document, error)
	Add(ctx context.Context, title, content string) (*document.Document, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit    *genkit.Genkit
	Pool      *pgxpool.Pool // nil when running on the REST backend only
	Documents DocumentBackend
	Retriever *retrieval.Retriever
	Sessions  session.Store
	Agent     *chat.Agent

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.Pool != nil {
		a.Pool.Close()
		slog.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
