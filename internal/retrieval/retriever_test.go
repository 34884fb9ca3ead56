package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ragkit/ragkit/internal/document"
)

func docs(contents ...string) []document.Document {
	out := make([]document.Document, len(contents))
	for i, c := range contents {
		out[i] = document.Document{ID: int64(i + 1), Content: c}
	}
	return out
}

func TestRank(t *testing.T) {
	corpus := docs(
		"Go is a compiled language with garbage collection",
		"Postgres supports JSON and full text search",
		"The Go runtime schedules goroutines onto OS threads",
	)

	scored := Rank("go language runtime", corpus)
	if len(scored) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(scored), scored)
	}
	// Doc 3 matches "go" and "runtime" (2), doc 1 matches "go" and
	// "language" (2); ties preserve input order, so doc 1 comes first.
	if scored[0].ID != 1 || scored[0].Score != 2 {
		t.Errorf("first = id %d score %d, want id 1 score 2", scored[0].ID, scored[0].Score)
	}
	if scored[1].ID != 3 || scored[1].Score != 2 {
		t.Errorf("second = id %d score %d, want id 3 score 2", scored[1].ID, scored[1].Score)
	}
}

func TestRank_RepeatedQueryWordsCountOnce(t *testing.T) {
	corpus := docs(
		"go programming",
		"run fast",
	)

	// "go" appears three times in the query but may only contribute one
	// point per document; the two-distinct-word match must win.
	scored := Rank("go go go run fast", corpus)
	if len(scored) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(scored), scored)
	}
	if scored[0].ID != 2 || scored[0].Score != 2 {
		t.Errorf("first = id %d score %d, want id 2 score 2", scored[0].ID, scored[0].Score)
	}
	if scored[1].ID != 1 || scored[1].Score != 1 {
		t.Errorf("second = id %d score %d, want id 1 score 1", scored[1].ID, scored[1].Score)
	}
}

func TestRank_CaseInsensitive(t *testing.T) {
	scored := Rank("GOROUTINES", docs("The Go runtime schedules Goroutines"))
	if len(scored) != 1 || scored[0].Score != 1 {
		t.Fatalf("case-insensitive match failed: %+v", scored)
	}
}

func TestRank_NoMatches(t *testing.T) {
	if got := Rank("kubernetes", docs("Go is a language")); len(got) != 0 {
		t.Fatalf("expected no results, got %+v", got)
	}
}

func TestRank_EmptyQuery(t *testing.T) {
	if got := Rank("   ", docs("anything")); got != nil {
		t.Fatalf("expected nil for blank query, got %+v", got)
	}
}

func TestRank_OrdersByScore(t *testing.T) {
	corpus := docs(
		"alpha",
		"alpha beta",
		"alpha beta gamma",
	)
	scored := Rank("alpha beta gamma", corpus)
	if len(scored) != 3 {
		t.Fatalf("got %d results", len(scored))
	}
	if scored[0].ID != 3 || scored[1].ID != 2 || scored[2].ID != 1 {
		t.Fatalf("wrong order: %+v", scored)
	}
}

func TestContextBlock(t *testing.T) {
	got := ContextBlock(docs("first passage", "second passage"))
	want := "first passage\n\nsecond passage"
	if got != want {
		t.Fatalf("ContextBlock() = %q, want %q", got, want)
	}
}

func TestContextBlock_Empty(t *testing.T) {
	if got := ContextBlock(nil); got != NoContextFallback {
		t.Fatalf("ContextBlock(nil) = %q, want fallback", got)
	}
}

type stubSource struct {
	docs []document.Document
	err  error
}

func (s *stubSource) FetchDocuments(context.Context) ([]document.Document, error) {
	return s.docs, s.err
}

type stubVector struct {
	docs  []document.Document
	err   error
	calls int
}

func (s *stubVector) SearchSimilar(_ context.Context, _ string, limit int) ([]document.Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.docs) > limit {
		return s.docs[:limit], nil
	}
	return s.docs, nil
}

func TestRetriever_KeywordOnly(t *testing.T) {
	src := &stubSource{docs: docs(
		"Go concurrency with channels",
		"Rust ownership model",
		"channels in Go are typed",
	)}

	r, err := New(Config{Source: src, TopK: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "go channels")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d docs, want 1 (topK)", len(got))
	}
	if !strings.Contains(strings.ToLower(got[0].Content), "channels") {
		t.Fatalf("unexpected top doc: %+v", got[0])
	}
}

func TestRetriever_VectorFirst(t *testing.T) {
	src := &stubSource{docs: docs("keyword fallback doc about go")}
	vec := &stubVector{docs: docs("vector result")}

	r, err := New(Config{Source: src, Vector: vec, TopK: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "go")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if vec.calls != 1 {
		t.Fatalf("vector searcher called %d times, want 1", vec.calls)
	}
	if len(got) != 1 || got[0].Content != "vector result" {
		t.Fatalf("expected vector result, got %+v", got)
	}
}

func TestRetriever_VectorFallsBackOnError(t *testing.T) {
	src := &stubSource{docs: docs("go concurrency patterns")}
	vec := &stubVector{err: errors.New("no embeddings")}

	r, err := New(Config{Source: src, Vector: vec})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "concurrency")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("fallback should return keyword results, got %+v", got)
	}
}

func TestRetriever_SourceError(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}

	r, err := New(Config{Source: src})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "anything"); err == nil {
		t.Fatal("Retrieve() should propagate source errors")
	}
}

func TestNew_TopKClamping(t *testing.T) {
	src := &stubSource{}

	tests := []struct {
		in, want int
	}{
		{0, 5},
		{-3, 1},
		{7, 7},
		{25, 10},
	}
	for _, tt := range tests {
		r, err := New(Config{Source: src, TopK: tt.in})
		if err != nil {
			t.Fatalf("New(TopK=%d) error = %v", tt.in, err)
		}
		if got := r.TopK(); got != tt.want {
			t.Errorf("TopK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() should require a source")
	}
}
