// Package docstore is the direct-Postgres document backend. It stores
// knowledge-base rows with pgvector embeddings and serves both keyword and
// similarity retrieval.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/ragkit/ragkit/internal/document"
)

// VectorDimension is the embedding size stored in the documents table.
// Must match the vector(N) column in the schema.
const VectorDimension int32 = 768

// EmbedTimeout bounds a single embedding call.
const EmbedTimeout = 15 * time.Second

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// tableNameRe rejects anything that is not a plain identifier. The table
// name is interpolated into SQL below.
var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Store manages documents in PostgreSQL.
//
// The embedder is optional: without one, rows are stored with a NULL
// embedding and SearchSimilar reports an error, leaving keyword retrieval
// as the only strategy.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	table    string
	logger   *slog.Logger
}

// NewStore creates a document Store over the given pool and table.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, table string, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, table: table, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// FetchDocuments returns every row, ordered by id. Feeds keyword retrieval.
func (s *Store) FetchDocuments(ctx context.Context) ([]document.Document, error) {
	sql := fmt.Sprintf(
		`SELECT id, title, content, created_at FROM %s ORDER BY id`, s.table)

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// List returns a page of documents ordered by id.
func (s *Store) List(ctx context.Context, limit, offset int) ([]document.Document, error) {
	sql := fmt.Sprintf(
		`SELECT id, title, content, created_at FROM %s ORDER BY id LIMIT $1 OFFSET $2`, s.table)

	rows, err := s.pool.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Add inserts a document. Embedding is best-effort: a failed embed call
// stores the row with a NULL embedding rather than losing the content.
func (s *Store) Add(ctx context.Context, title, content string) (*document.Document, error) {
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if len(content) > document.MaxContentLength {
		return nil, fmt.Errorf("content length %d exceeds maximum %d", len(content), document.MaxContentLength)
	}
	if len(title) > document.MaxTitleLength {
		return nil, fmt.Errorf("title length %d exceeds maximum %d", len(title), document.MaxTitleLength)
	}

	var embedding any
	if s.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		vec, err := s.embed(embedCtx, content)
		cancel()
		if err != nil {
			s.logger.Warn("embedding failed, storing document without vector",
				"error", err)
		} else {
			embedding = vec
		}
	}

	sql := fmt.Sprintf(
		`INSERT INTO %s (title, content, embedding) VALUES ($1, $2, $3)
		 RETURNING id, title, content, created_at`, s.table)

	var doc document.Document
	err := s.pool.QueryRow(ctx, sql, title, content, embedding).
		Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("document stored",
		"id", doc.ID,
		"embedded", embedding != nil)

	return &doc, nil
}

// Delete removes a document by id. Returns ErrNotFound if no row matched.
func (s *Store) Delete(ctx context.Context, id int64) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)

	tag, err := s.pool.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// SearchSimilar embeds the query and returns the closest documents by
// cosine distance. Rows without an embedding are skipped.
func (s *Store) SearchSimilar(ctx context.Context, query string, limit int) ([]document.Document, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if limit < 1 {
		limit = 1
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sql := fmt.Sprintf(
		`SELECT id, title, content, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM %s
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, sql, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var doc document.Document
		var similarity float64
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}

	return docs, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]document.Document, error) {
	var docs []document.Document
	for rows.Next() {
		var doc document.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}
