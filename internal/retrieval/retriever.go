// Package retrieval ranks knowledge-base passages against a question and
// assembles the context block handed to the model.
//
// Two strategies are supported. Keyword ranking scores every document by
// query-word overlap and works against any backend that can list rows.
// Vector search delegates to a backend with embedding support and falls back
// to keyword ranking when it yields nothing.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ragkit/ragkit/internal/document"
)

// NoContextFallback is the context block used when nothing relevant was
// found. The prompt still carries it so the model knows retrieval came up
// empty instead of hallucinating sources.
const NoContextFallback = "No relevant documents found."

// Source lists the documents to rank. Both backends implement it.
type Source interface {
	FetchDocuments(ctx context.Context) ([]document.Document, error)
}

// VectorSearcher performs similarity search over embedded documents.
// Optional; only the direct-Postgres backend provides it.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, query string, limit int) ([]document.Document, error)
}

// Scored pairs a document with its keyword score.
type Scored struct {
	document.Document
	Score int
}

// Rank scores documents by how many distinct query words their content
// contains, case-insensitively. Documents with no overlap are dropped; the
// rest are ordered by score descending, input order preserved on ties.
func Rank(query string, docs []document.Document) []Scored {
	// Deduplicate so a repeated query word counts once per document.
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		words[w] = struct{}{}
	}
	if len(words) == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(docs))
	for _, doc := range docs {
		content := strings.ToLower(doc.Content)
		score := 0
		for w := range words {
			if strings.Contains(content, w) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, Scored{Document: doc, Score: score})
		}
	}

	slices.SortStableFunc(scored, func(a, b Scored) int {
		return b.Score - a.Score
	})

	return scored
}

// ContextBlock joins document contents into the prompt context, separated by
// blank lines. Empty input yields NoContextFallback.
func ContextBlock(docs []document.Document) string {
	if len(docs) == 0 {
		return NoContextFallback
	}

	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.Content
	}
	return strings.Join(parts, "\n\n")
}

// Config configures a Retriever.
type Config struct {
	Source Source
	// Vector is optional. When set, similarity search runs first and
	// keyword ranking is the fallback.
	Vector VectorSearcher
	TopK   int
	Logger *slog.Logger
}

// Retriever retrieves the most relevant passages for a question.
type Retriever struct {
	source Source
	vector VectorSearcher
	topK   int
	logger *slog.Logger
}

// New creates a Retriever. TopK is clamped to [1, 10]; zero means the
// default of 5.
func New(cfg Config) (*Retriever, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("retrieval source is required")
	}

	topK := cfg.TopK
	switch {
	case topK == 0:
		topK = 5
	case topK < 1:
		topK = 1
	case topK > 10:
		topK = 10
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Retriever{
		source: cfg.Source,
		vector: cfg.Vector,
		topK:   topK,
		logger: logger,
	}, nil
}

// Retrieve returns up to TopK documents relevant to the query, most relevant
// first. The slice is empty (not nil error) when nothing matches.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]document.Document, error) {
	if r.vector != nil {
		docs, err := r.vector.SearchSimilar(ctx, query, r.topK)
		if err != nil {
			// Vector search is an optimization; degrade to keyword
			// ranking rather than failing the question.
			r.logger.Warn("vector search failed, falling back to keyword ranking",
				"error", err)
		} else if len(docs) > 0 {
			r.logger.Debug("retrieved documents via vector search",
				"count", len(docs))
			return docs, nil
		}
	}

	all, err := r.source.FetchDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching documents: %w", err)
	}

	scored := Rank(query, all)
	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}

	docs := make([]document.Document, len(scored))
	for i, s := range scored {
		docs[i] = s.Document
	}

	r.logger.Debug("retrieved documents via keyword ranking",
		"corpus_size", len(all),
		"matched", len(docs))

	return docs, nil
}

// TopK returns the configured result limit.
func (r *Retriever) TopK() int {
	return r.topK
}
