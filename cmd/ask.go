package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/ragkit/ragkit/internal/app"
	"github.com/ragkit/ragkit/internal/config"
)

// runAsk answers a single question from the command line, streaming the
// answer to stdout as it is generated.
func runAsk() error {
	askFlags := flag.NewFlagSet("ask", flag.ContinueOnError)
	askFlags.SetOutput(os.Stderr)
	sessionFlag := askFlags.String("session", "", "Session ID to continue (default: one-off session)")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := askFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ask flags: %w", err)
	}

	question := strings.TrimSpace(strings.Join(askFlags.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: ragkit ask [--session <id>] <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	var sessionID uuid.UUID
	oneOff := *sessionFlag == ""
	if oneOff {
		sess, err := a.Sessions.Create(ctx, "")
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		sessionID = sess.ID
	} else {
		sessionID, err = uuid.Parse(*sessionFlag)
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", *sessionFlag, err)
		}
	}

	streamed := false
	_, err = a.Agent.ExecuteStream(ctx, sessionID, question, 0, func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		if chunk == nil {
			return nil
		}
		for _, part := range chunk.Content {
			if part.Text != "" {
				streamed = true
				fmt.Print(part.Text)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}
	if streamed {
		fmt.Println()
	}

	if oneOff {
		// One-off sessions are not worth keeping around.
		_ = a.Sessions.Delete(ctx, sessionID)
	} else {
		fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)
	}
	return nil
}
