// Package chat implements the conversational RAG agent: it retrieves
// relevant passages, replays a window of session history, and generates a
// grounded answer through Genkit.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ragkit/ragkit/internal/document"
	"github.com/ragkit/ragkit/internal/retrieval"
	"github.com/ragkit/ragkit/internal/session"
)

const (
	// Memory window bounds: how many trailing history messages are
	// replayed into the prompt.
	MinMemoryWindow     = 3
	MaxMemoryWindow     = 12
	DefaultMemoryWindow = 6

	// maxTitleLength bounds auto-generated session titles.
	maxTitleLength = 60

	// fallbackResponseMessage is returned when the model produces an
	// empty response.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Sentinel errors for agent operations.
var (
	// ErrInvalidSession indicates the session ID is invalid or unknown.
	ErrInvalidSession = errors.New("invalid session")

	// ErrEmptyQuery indicates the question was blank.
	ErrEmptyQuery = errors.New("empty query")

	// ErrExecutionFailed indicates agent execution failed.
	ErrExecutionFailed = errors.New("execution failed")
)

// StreamCallback is called for each chunk of a streaming response.
// Return an error to abort the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Response is the complete result of an agent execution.
type Response struct {
	Text    string              // Model's final text output
	Context []document.Document // Passages the answer was grounded on
}

// Config contains all required parameters for the chat agent.
type Config struct {
	Genkit    *genkit.Genkit
	Sessions  session.Store
	Retriever *retrieval.Retriever
	Logger    *slog.Logger

	// ModelName is the provider-qualified model name
	// (e.g. "googleai/gemini-2.5-flash").
	ModelName string

	// MemoryWindow is the default history window; clamped to
	// [MinMemoryWindow, MaxMemoryWindow], zero means DefaultMemoryWindow.
	MemoryWindow int

	Temperature float32
	MaxTokens   int

	// Resilience (zero values use defaults).
	RetryConfig RetryConfig
	RateLimiter *rate.Limiter

	// BreakerThreshold is the run of consecutive generation failures that
	// trips the breaker; BreakerCooldown is how long it then rejects calls
	// before probing the model again.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent is the conversational RAG agent.
//
// Agent is stateless across requests; all configuration is captured
// immutably at construction, so it is safe for concurrent use.
type Agent struct {
	g            *genkit.Genkit
	sessions     session.Store
	retriever    *retrieval.Retriever
	logger       *slog.Logger
	modelName    string
	memoryWindow int
	temperature  float32
	maxTokens    int

	retryConfig RetryConfig
	breaker     *breaker
	rateLimiter *rate.Limiter
}

// New creates a chat agent.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	a := &Agent{
		g:            cfg.Genkit,
		sessions:     cfg.Sessions,
		retriever:    cfg.Retriever,
		logger:       logger,
		modelName:    cfg.ModelName,
		memoryWindow: ClampMemoryWindow(cfg.MemoryWindow),
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		retryConfig:  retryConfig,
		breaker:      newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		rateLimiter:  rl,
	}

	a.logger.Info("chat agent initialized",
		"model", a.modelName,
		"memory_window", a.memoryWindow,
		"top_k", a.retriever.TopK())

	return a, nil
}

// ClampMemoryWindow normalizes a requested history window. Zero selects the
// default; anything else is clamped to the allowed range.
func ClampMemoryWindow(n int) int {
	switch {
	case n == 0:
		return DefaultMemoryWindow
	case n < MinMemoryWindow:
		return MinMemoryWindow
	case n > MaxMemoryWindow:
		return MaxMemoryWindow
	}
	return n
}

// Execute answers a question without streaming.
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, query string, window int) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, query, window, nil)
}

// ExecuteStream answers a question, invoking callback for each response
// chunk when non-nil. The final response is always returned.
//
// window selects how many trailing history messages are replayed; zero uses
// the agent default.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID uuid.UUID, query string, window int, callback StreamCallback) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	memWindow := a.memoryWindow
	if window != 0 {
		memWindow = ClampMemoryWindow(window)
	}

	a.logger.Debug("executing chat agent",
		"session_id", sessionID,
		"memory_window", memWindow,
		"streaming", callback != nil)

	// Fetch the session first so an unknown id fails before any model
	// call, and so auto-titling below knows the current title.
	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSession, sessionID)
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	// Load history and retrieve context in parallel. Buffered channels so
	// neither goroutine blocks if the caller returns early.
	type historyResult struct {
		msgs []session.Message
		err  error
	}
	type retrievalResult struct {
		docs []document.Document
		err  error
	}

	historyCh := make(chan historyResult, 1)
	retrievalCh := make(chan retrievalResult, 1)

	go func() {
		msgs, err := a.sessions.History(ctx, sessionID, memWindow)
		historyCh <- historyResult{msgs, err}
	}()
	go func() {
		docs, err := a.retriever.Retrieve(ctx, query)
		retrievalCh <- retrievalResult{docs, err}
	}()

	hr := <-historyCh
	if hr.err != nil {
		return nil, fmt.Errorf("loading history: %w", hr.err)
	}

	rr := <-retrievalCh
	if rr.err != nil {
		// Retrieval failure degrades to an answer without context
		// rather than failing the question.
		a.logger.Warn("retrieval failed, answering without context", "error", rr.err)
		rr.docs = nil
	}

	prompt := buildPrompt(query, retrieval.ContextBlock(rr.docs), hr.msgs)

	resp, err := a.generate(ctx, prompt, callback)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	responseText := resp.Text()
	if strings.TrimSpace(responseText) == "" {
		a.logger.Warn("model returned empty response", "session_id", sessionID)
		responseText = fallbackResponseMessage
	}

	// Persist the exchange best-effort; a storage hiccup should not lose
	// the answer the user already received.
	if err := a.sessions.Append(ctx, sessionID,
		session.Message{Role: session.RoleUser, Content: query},
		session.Message{Role: session.RoleAssistant, Content: responseText},
	); err != nil {
		a.logger.Warn("appending messages to history", "error", err)
	}

	if sess.Title == "" {
		if err := a.sessions.SetTitle(ctx, sessionID, titleFromQuery(query)); err != nil {
			a.logger.Debug("setting session title", "error", err)
		}
	}

	return &Response{Text: responseText, Context: rr.docs}, nil
}

// generate calls the model through the circuit breaker, rate limiter, and
// retry loop.
func (a *Agent) generate(ctx context.Context, prompt string, callback StreamCallback) (*ai.ModelResponse, error) {
	if err := a.breaker.acquire(); err != nil {
		return nil, err
	}

	genConfig := &genai.GenerateContentConfig{}
	if a.temperature > 0 {
		temp := a.temperature
		genConfig.Temperature = &temp
	}
	if a.maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(a.maxTokens) // #nosec G115 -- validated at config load
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(genConfig),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
	}

	resp, err := a.executeWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, a.g, opts...)
	})
	if err != nil {
		a.breaker.fail()
		return nil, err
	}

	a.breaker.succeed()
	return resp, nil
}

// titleFromQuery derives a session title from the first question.
func titleFromQuery(query string) string {
	title := strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(title) <= maxTitleLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxTitleLength-1]) + "…"
}
