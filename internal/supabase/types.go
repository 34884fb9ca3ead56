package supabase

import "fmt"

// APIError is a non-2xx response from PostgREST.
type APIError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase API error (status %d) for %s: %s", e.StatusCode, e.URL, e.Body)
}

// IsRetryable reports whether the failure is worth retrying.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
