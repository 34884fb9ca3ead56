package api

import (
	"net/http"

	"github.com/ragkit/ragkit/internal/log"
)

// healthHandler serves the liveness and readiness probes.
type healthHandler struct {
	pingers map[string]Pinger
	logger  log.Logger
}

func newHealthHandler(pingers map[string]Pinger, logger log.Logger) *healthHandler {
	return &healthHandler{pingers: pingers, logger: logger}
}

func (h *healthHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 whenever the process is alive.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness pings every registered backend and reports per-dependency
// status. Any failure yields 503.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.pingers))
	ready := true

	for name, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	respond(w, code, map[string]any{
		"ready":        ready,
		"dependencies": status,
	})
}
