package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/ragkit/ragkit/internal/log"
	"github.com/ragkit/ragkit/internal/session"
)

const (
	// DefaultListLimit is the page size when none is given.
	DefaultListLimit = 100
	// MaxListLimit caps the page size.
	MaxListLimit = 1000
	// MaxListOffset caps pagination depth.
	MaxListOffset = 100000
)

// sessionHandler serves the session CRUD endpoints.
type sessionHandler struct {
	store  session.Store
	logger log.Logger
}

func newSessionHandler(store session.Store, logger log.Logger) *sessionHandler {
	return &sessionHandler{store: store, logger: logger}
}

func (h *sessionHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
	mux.HandleFunc("GET /api/sessions/{id}/messages", h.messages)
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseIntParam(w, r, "limit", DefaultListLimit, 1, MaxListLimit)
	if !ok {
		return
	}
	offset, ok := parseIntParam(w, r, "offset", 0, 0, MaxListOffset)
	if !ok {
		return
	}

	sessions, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}
	respond(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	// Body is optional; an empty body creates an untitled session.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	sess, err := h.store.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}
	respond(w, http.StatusCreated, sess)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("getting session", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get session")
		return
	}
	respond(w, http.StatusOK, sess)
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("deleting session", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	limit, ok := parseIntParam(w, r, "limit", 0, 0, MaxListLimit)
	if !ok {
		return
	}

	msgs, err := h.store.History(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("fetching history", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to fetch messages")
		return
	}
	respond(w, http.StatusOK, map[string]any{"messages": msgs})
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam reads an integer query parameter with bounds checking.
// A missing parameter yields the default. Returns false after writing an
// error response when the value is malformed or out of range.
func parseIntParam(w http.ResponseWriter, r *http.Request, name string, def, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		respondError(w, http.StatusBadRequest, "invalid_request",
			name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
		return 0, false
	}
	return v, true
}
