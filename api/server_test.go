package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ragkit/ragkit/internal/session"
	"github.com/ragkit/ragkit/internal/testutil"
)

func TestServer_RoutesRegistered(t *testing.T) {
	handler := newTestHandler(t, session.NewMemStore())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/ready"},
		{http.MethodGet, "/api/sessions"},
		{http.MethodGet, "/api/documents"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.NotEqual(t, http.StatusNotFound, w.Code, tt.path)
	}
}

func TestServer_CORSConfigured(t *testing.T) {
	srv := NewServer(ServerConfig{
		Sessions:    session.NewMemStore(),
		Documents:   &stubDocs{},
		Logger:      testutil.DiscardLogger(),
		CORSOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimitConfigured(t *testing.T) {
	srv := NewServer(ServerConfig{
		Sessions:  session.NewMemStore(),
		Documents: &stubDocs{},
		Logger:    testutil.DiscardLogger(),
		RateLimit: rate.Limit(1),
		RateBurst: 1,
	})
	handler := srv.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestServer_RunGracefulShutdown(t *testing.T) {
	srv := NewServer(ServerConfig{
		Sessions:  session.NewMemStore(),
		Documents: &stubDocs{},
		Logger:    testutil.DiscardLogger(),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, addr)
	}()

	// Wait for the server to accept connections.
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
