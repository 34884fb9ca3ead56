package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestFlow_AutoCreatesSession(t *testing.T) {
	ResetFlowForTesting()
	t.Cleanup(ResetFlowForTesting)

	s := setupAgent(t, "Go compiles to native code")
	s.model.AddResponse("compile", "It compiles to native code.")

	f := NewFlow(s.agent.g, s.agent)
	ctx := context.Background()

	out, err := f.Run(ctx, Input{Query: "does go compile"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Response != "It compiles to native code." {
		t.Fatalf("Response = %q", out.Response)
	}

	// A session was created and the exchange stored in it.
	id, err := uuid.Parse(out.SessionID)
	if err != nil {
		t.Fatalf("SessionID %q is not a UUID: %v", out.SessionID, err)
	}
	history, err := s.sessions.History(ctx, id, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if len(out.Context) != 1 {
		t.Fatalf("Context = %v", out.Context)
	}
}

func TestFlow_ReusesSession(t *testing.T) {
	ResetFlowForTesting()
	t.Cleanup(ResetFlowForTesting)

	s := setupAgent(t)
	f := NewFlow(s.agent.g, s.agent)
	ctx := context.Background()

	sess, _ := s.sessions.Create(ctx, "")

	out, err := f.Run(ctx, Input{Query: "first", SessionID: sess.ID.String()})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.SessionID != sess.ID.String() {
		t.Fatalf("SessionID = %q, want %q", out.SessionID, sess.ID)
	}

	if _, err := f.Run(ctx, Input{Query: "second", SessionID: sess.ID.String()}); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	history, _ := s.sessions.History(ctx, sess.ID, 0)
	if len(history) != 4 {
		t.Fatalf("history has %d messages, want 4", len(history))
	}
}

func TestFlow_InvalidSessionID(t *testing.T) {
	ResetFlowForTesting()
	t.Cleanup(ResetFlowForTesting)

	s := setupAgent(t)
	f := NewFlow(s.agent.g, s.agent)

	if _, err := f.Run(context.Background(), Input{Query: "q", SessionID: "not-a-uuid"}); err == nil {
		t.Fatal("Run() should reject a malformed session id")
	}
}
