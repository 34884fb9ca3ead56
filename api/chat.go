package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/ragkit/ragkit/internal/chat"
	"github.com/ragkit/ragkit/internal/log"
)

// chatHandler serves the chat endpoints backed by the Genkit flow.
//
// The synchronous endpoint uses genkit.Handler directly; the streaming
// endpoint emits Server-Sent Events. Both run the same flow.
type chatHandler struct {
	flow   *chat.Flow
	logger log.Logger
}

func newChatHandler(flow *chat.Flow, logger log.Logger) *chatHandler {
	return &chatHandler{flow: flow, logger: logger}
}

func (h *chatHandler) registerRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("chat flow is nil, chat endpoints not registered")
		return
	}
	mux.Handle("POST /api/chat", genkit.Handler(h.flow))
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// SSEChunkData is the payload of "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the payload of the final "done" event.
type SSEDoneData struct {
	Response  string   `json:"response"`
	SessionID string   `json:"sessionId"`
	Context   []string `json:"context,omitempty"`
}

// SSEErrorData is the payload of "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream answers a question over Server-Sent Events.
//
// Event types:
//   - chunk: partial text {"text": "..."}
//   - done:  final output {"response": "...", "sessionId": "...", "context": [...]}
//   - error: failure {"code": "...", "message": "..."}
func (h *chatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable nginx buffering so chunks reach the client immediately.
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var input chat.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if input.Query == "" {
		h.writeSSEError(w, flusher, "MISSING_QUERY", "query is required")
		return
	}

	ctx := r.Context()

	var finalOutput chat.Output
	var streamErr error

	for streamValue, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "sessionId", input.SessionID)
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}
		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}
		if streamValue.Stream.Text != "" {
			h.writeSSEChunk(w, flusher, streamValue.Stream.Text)
		}
	}

	if streamErr != nil {
		h.logger.Error("stream failed", "error", streamErr, "sessionId", input.SessionID)
		h.writeSSEError(w, flusher, "STREAM_ERROR", streamErr.Error())
		return
	}

	h.writeSSEDone(w, flusher, finalOutput)
}

func (h *chatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *chatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, out chat.Output) {
	data, _ := json.Marshal(SSEDoneData{
		Response:  out.Response,
		SessionID: out.SessionID,
		Context:   out.Context,
	})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *chatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
