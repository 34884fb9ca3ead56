package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/ragkit/ragkit/internal/document"
	"github.com/ragkit/ragkit/internal/retrieval"
	"github.com/ragkit/ragkit/internal/session"
	"github.com/ragkit/ragkit/internal/testutil"
)

type fixedSource struct {
	docs []document.Document
}

func (s *fixedSource) FetchDocuments(context.Context) ([]document.Document, error) {
	return s.docs, nil
}

type agentSetup struct {
	agent    *Agent
	sessions session.Store
	model    *testutil.MockModel
}

func setupAgent(t *testing.T, corpus ...string) *agentSetup {
	t.Helper()

	g := genkit.Init(context.Background())
	model := testutil.NewMockModel("fallback answer")
	model.Register(g)

	docs := make([]document.Document, len(corpus))
	for i, c := range corpus {
		docs[i] = document.Document{ID: int64(i + 1), Content: c}
	}
	retriever, err := retrieval.New(retrieval.Config{
		Source: &fixedSource{docs: docs},
		Logger: testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("retrieval.New() error = %v", err)
	}

	sessions := session.NewMemStore()

	agent, err := New(Config{
		Genkit:      g,
		Sessions:    sessions,
		Retriever:   retriever,
		Logger:      testutil.DiscardLogger(),
		ModelName:   "mock/test-model",
		RetryConfig: RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &agentSetup{agent: agent, sessions: sessions, model: model}
}

func TestAgent_Execute(t *testing.T) {
	s := setupAgent(t, "Go was created at Google in 2009")
	s.model.AddResponse("who created go", "Go was created at Google.")
	ctx := context.Background()

	sess, err := s.sessions.Create(ctx, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	resp, err := s.agent.Execute(ctx, sess.ID, "who created go", 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Text != "Go was created at Google." {
		t.Fatalf("Text = %q", resp.Text)
	}
	if len(resp.Context) != 1 {
		t.Fatalf("Context = %+v, want the matching document", resp.Context)
	}

	// The retrieved passage must have reached the model.
	calls := s.model.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times", len(calls))
	}
	if !strings.Contains(calls[0].UserMessage, "Go was created at Google in 2009") {
		t.Fatalf("prompt missing retrieved context:\n%s", calls[0].UserMessage)
	}

	// The exchange is persisted and the session auto-titled.
	history, err := s.sessions.History(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if history[0].Role != session.RoleUser || history[1].Role != session.RoleAssistant {
		t.Fatalf("wrong roles: %+v", history)
	}

	got, _ := s.sessions.Get(ctx, sess.ID)
	if got.Title != "who created go" {
		t.Fatalf("Title = %q, want auto-generated from query", got.Title)
	}
}

func TestAgent_Execute_NoMatchingContext(t *testing.T) {
	s := setupAgent(t, "Postgres stores relational data")
	ctx := context.Background()

	sess, _ := s.sessions.Create(ctx, "")

	if _, err := s.agent.Execute(ctx, sess.ID, "zzzz", 0); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	calls := s.model.Calls()
	if !strings.Contains(calls[0].UserMessage, retrieval.NoContextFallback) {
		t.Fatalf("prompt should carry the no-context fallback:\n%s", calls[0].UserMessage)
	}
}

func TestAgent_Execute_HistoryWindow(t *testing.T) {
	s := setupAgent(t)
	ctx := context.Background()

	sess, _ := s.sessions.Create(ctx, "titled")
	for i := 0; i < 5; i++ {
		if err := s.sessions.Append(ctx, sess.ID,
			session.Message{Role: session.RoleUser, Content: "old question"},
			session.Message{Role: session.RoleAssistant, Content: "old answer"},
		); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	// Window of 3 replays only the 3 most recent messages.
	if _, err := s.agent.Execute(ctx, sess.ID, "new question", 3); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	prompt := s.model.Calls()[0].UserMessage
	if got := strings.Count(prompt, "old answer"); got != 2 {
		t.Fatalf("window should include 2 old answers, got %d:\n%s", got, prompt)
	}
	if got := strings.Count(prompt, "old question"); got != 1 {
		t.Fatalf("window should include 1 old question, got %d", got)
	}
}

func TestAgent_Execute_EmptyQuery(t *testing.T) {
	s := setupAgent(t)
	sess, _ := s.sessions.Create(context.Background(), "")

	if _, err := s.agent.Execute(context.Background(), sess.ID, "   ", 0); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("Execute() = %v, want ErrEmptyQuery", err)
	}
}

func TestAgent_Execute_UnknownSession(t *testing.T) {
	s := setupAgent(t)

	_, err := s.agent.Execute(context.Background(), uuid.New(), "hello", 0)
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Execute() = %v, want ErrInvalidSession", err)
	}
}

func TestAgent_Execute_ModelError(t *testing.T) {
	s := setupAgent(t)
	s.model.FailWith(errors.New("invalid argument"))
	ctx := context.Background()

	sess, _ := s.sessions.Create(ctx, "")

	_, err := s.agent.Execute(ctx, sess.ID, "hello", 0)
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("Execute() = %v, want ErrExecutionFailed", err)
	}

	// Nothing was persisted for the failed exchange.
	history, _ := s.sessions.History(ctx, sess.ID, 0)
	if len(history) != 0 {
		t.Fatalf("failed exchange should not be stored: %+v", history)
	}
}

func TestAgent_ExecuteStream(t *testing.T) {
	s := setupAgent(t)
	s.model.AddResponse("stream", "streamed answer")
	ctx := context.Background()

	sess, _ := s.sessions.Create(ctx, "")

	var chunks []string
	cb := func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		for _, part := range chunk.Content {
			chunks = append(chunks, part.Text)
		}
		return nil
	}

	resp, err := s.agent.ExecuteStream(ctx, sess.ID, "please stream this", 0, cb)
	if err != nil {
		t.Fatalf("ExecuteStream() error = %v", err)
	}
	if resp.Text != "streamed answer" {
		t.Fatalf("Text = %q", resp.Text)
	}
	if strings.Join(chunks, "") != "streamed answer" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() should require dependencies")
	}
}
