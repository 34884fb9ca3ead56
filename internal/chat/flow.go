package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Input defines the request payload for the chat flow.
type Input struct {
	Query string `json:"query"`
	// SessionID is optional; when empty, a new session is created and its
	// id returned in the output.
	SessionID string `json:"sessionId,omitempty"`
	// MemoryWindow overrides the history window for this request.
	// Zero uses the server default; other values are clamped.
	MemoryWindow int `json:"memoryWindow,omitempty"`
}

// Output defines the response payload from the chat flow.
type Output struct {
	Response  string   `json:"response"`
	SessionID string   `json:"sessionId"`
	Context   []string `json:"context,omitempty"`
}

// StreamChunk is the streaming output type: partial text that can be
// displayed immediately.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the chat flow in Genkit.
const FlowName = "ragkit/chat"

// Flow is the chat agent's Genkit streaming flow type.
// Exported for use in the api package with genkit.Handler().
type Flow = core.Flow[Input, Output, StreamChunk]

// Flow registration is global in Genkit and panics on re-registration, so
// the flow is a package-level singleton.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, initializing it on first call.
// Subsequent calls return the existing flow (parameters are ignored).
func NewFlow(g *genkit.Genkit, agent *Agent) *Flow {
	flowOnce.Do(func() {
		flow = agent.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton so tests can initialize
// with different configurations. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow defines the Genkit streaming flow wrapping Agent.ExecuteStream.
// Use NewFlow() instead of calling this directly; registering twice panics.
func (a *Agent) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			sessionID, created, err := a.resolveSession(ctx, input.SessionID)
			if err != nil {
				return Output{SessionID: input.SessionID}, err
			}

			var agentCallback StreamCallback
			if streamCb != nil {
				agentCallback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part.Text == "" {
							continue
						}
						if streamErr := streamCb(ctx, StreamChunk{Text: part.Text}); streamErr != nil {
							return streamErr
						}
					}
					return nil
				}
			}

			resp, err := a.ExecuteStream(ctx, sessionID, input.Query, input.MemoryWindow, agentCallback)
			if err != nil {
				// Remove a session we created but never used.
				if created {
					if delErr := a.sessions.Delete(ctx, sessionID); delErr != nil {
						a.logger.Debug("cleaning up unused session", "error", delErr)
					}
				}
				return Output{SessionID: sessionID.String()}, err
			}

			contexts := make([]string, len(resp.Context))
			for i, doc := range resp.Context {
				contexts[i] = doc.Content
			}

			return Output{
				Response:  resp.Text,
				SessionID: sessionID.String(),
				Context:   contexts,
			}, nil
		},
	)
}

// resolveSession parses the given session id, or creates a fresh session
// when the id is empty. The second return value reports whether a session
// was created by this call.
func (a *Agent) resolveSession(ctx context.Context, raw string) (uuid.UUID, bool, error) {
	if raw == "" {
		sess, err := a.sessions.Create(ctx, "")
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("creating session: %w", err)
		}
		return sess.ID, true, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return id, false, nil
}
