package chat

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("googleai: rate limit exceeded"), true},
		{"quota", errors.New("Quota Exceeded for project"), true},
		{"429", errors.New("HTTP 429 Too Many Requests"), true},
		{"500", errors.New("server returned 500"), true},
		{"503", errors.New("503 Service Unavailable"), true},
		{"unavailable", errors.New("model temporarily UNAVAILABLE"), true},
		{"timeout", errors.New("context deadline exceeded: timeout"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"bad request", errors.New("invalid argument: bad prompt"), false},
		{"auth", errors.New("401 unauthorized"), false},
		{"wrapped retryable", fmt.Errorf("calling model: %w", errors.New("429")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		t.Error("MaxRetries should be positive")
	}
	if cfg.InitialInterval <= 0 || cfg.MaxInterval < cfg.InitialInterval {
		t.Errorf("bad intervals: %+v", cfg)
	}
}
