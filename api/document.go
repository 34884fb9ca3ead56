package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ragkit/ragkit/internal/docstore"
	"github.com/ragkit/ragkit/internal/document"
	"github.com/ragkit/ragkit/internal/log"
	"github.com/ragkit/ragkit/internal/supabase"
)

// DocumentService is the document backend surface the API needs.
type DocumentService interface {
	List(ctx context.Context, limit, offset int) ([]document.Document, error)
	Add(ctx context.Context, title, content string) (*document.Document, error)
	Delete(ctx context.Context, id int64) error
}

// documentHandler serves the document CRUD endpoints.
type documentHandler struct {
	docs   DocumentService
	logger log.Logger
}

func newDocumentHandler(docs DocumentService, logger log.Logger) *documentHandler {
	return &documentHandler{docs: docs, logger: logger}
}

func (h *documentHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/documents", h.list)
	mux.HandleFunc("POST /api/documents", h.add)
	mux.HandleFunc("DELETE /api/documents/{id}", h.delete)
}

func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseIntParam(w, r, "limit", DefaultListLimit, 1, MaxListLimit)
	if !ok {
		return
	}
	offset, ok := parseIntParam(w, r, "offset", 0, 0, MaxListOffset)
	if !ok {
		return
	}

	docs, err := h.docs.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing documents", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list documents")
		return
	}
	respond(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *documentHandler) add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	switch {
	case req.Title == "":
		respondError(w, http.StatusBadRequest, "invalid_request", "title is required")
		return
	case len(req.Title) > document.MaxTitleLength:
		respondError(w, http.StatusBadRequest, "invalid_request",
			"title exceeds "+strconv.Itoa(document.MaxTitleLength)+" characters")
		return
	case req.Content == "":
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	case len(req.Content) > document.MaxContentLength:
		respondError(w, http.StatusBadRequest, "invalid_request",
			"content exceeds "+strconv.Itoa(document.MaxContentLength)+" characters")
		return
	}

	doc, err := h.docs.Add(r.Context(), req.Title, req.Content)
	if err != nil {
		h.logger.Error("adding document", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add document")
		return
	}
	respond(w, http.StatusCreated, doc)
}

func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid document ID")
		return
	}

	if err := h.docs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, supabase.ErrNotFound) || errors.Is(err, docstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		h.logger.Error("deleting document", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
