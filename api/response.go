package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// apiError is the JSON envelope for error responses. Code is a stable
// machine-readable identifier; Message is human-readable detail.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// respond writes payload as JSON with the given status. The payload is
// marshaled before any headers go out, so an unserializable value still
// produces a clean 500 instead of a truncated body.
func respond(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshaling response", "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body = append(body, '\n')
	if _, err := w.Write(body); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respond(w, status, apiError{Error: code, Message: message})
}
