package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragkit/ragkit/internal/session"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t, session.NewMemStore())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		pingers  map[string]Pinger
		wantCode int
		wantDeps map[string]string
	}{
		{
			name:     "all backends up",
			pingers:  map[string]Pinger{"documents": stubPinger{}},
			wantCode: http.StatusOK,
			wantDeps: map[string]string{"documents": "ok"},
		},
		{
			name: "one backend down",
			pingers: map[string]Pinger{
				"documents": stubPinger{err: errors.New("connection refused")},
				"database":  stubPinger{},
			},
			wantCode: http.StatusServiceUnavailable,
			wantDeps: map[string]string{"documents": "unavailable", "database": "ok"},
		},
		{
			name:     "no backends registered",
			pingers:  nil,
			wantCode: http.StatusOK,
			wantDeps: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(ServerConfig{
				Sessions:  session.NewMemStore(),
				Documents: &stubDocs{},
				Pingers:   tt.pingers,
			})

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			require.Equal(t, tt.wantCode, w.Code)

			var resp struct {
				Ready        bool              `json:"ready"`
				Dependencies map[string]string `json:"dependencies"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode == http.StatusOK, resp.Ready)
			assert.Equal(t, tt.wantDeps, resp.Dependencies)
		})
	}
}
