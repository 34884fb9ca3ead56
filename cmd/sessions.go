package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/ragkit/ragkit/internal/app"
	"github.com/ragkit/ragkit/internal/config"
)

const sessionsListLimit = 50

// runSessions dispatches the session management subcommands.
func runSessions() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: ragkit sessions <list|show|delete>")
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

	switch os.Args[2] {
	case "list":
		return runSessionsList(ctx, a)
	case "show":
		return runSessionsShow(ctx, a, os.Args[3:])
	case "delete":
		return runSessionsDelete(ctx, a, os.Args[3:])
	default:
		return fmt.Errorf("unknown sessions subcommand: %s", os.Args[2])
	}
}

func runSessionsList(ctx context.Context, a *app.App) error {
	sessions, err := a.Sessions.List(ctx, sessionsListLimit, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions stored")
		return nil
	}
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %3d msgs  %s  %s\n",
			s.ID, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"), title)
	}
	return nil
}

func runSessionsShow(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ragkit sessions show <id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q: %w", args[0], err)
	}

	msgs, err := a.Sessions.History(ctx, id, 0)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	return nil
}

func runSessionsDelete(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ragkit sessions delete <id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q: %w", args[0], err)
	}

	if err := a.Sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	fmt.Printf("deleted session %s\n", id)
	return nil
}
