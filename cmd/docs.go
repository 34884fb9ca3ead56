package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/ragkit/ragkit/internal/app"
	"github.com/ragkit/ragkit/internal/config"
)

const (
	docsListLimit     = 100
	docsPreviewLength = 60
)

// runDocs dispatches the document management subcommands.
func runDocs() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: ragkit docs <list|add|delete>")
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
		return runDocsList(ctx, a)
	case "add":
		return runDocsAdd(ctx, a, os.Args[3:])
	case "delete":
		return runDocsDelete(ctx, a, os.Args[3:])
	default:
		return fmt.Errorf("unknown docs subcommand: %s", os.Args[2])
	}
}

func runDocsList(ctx context.Context, a *app.App) error {
	docs, err := a.Documents.List(ctx, docsListLimit, 0)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("no documents stored")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%6d  %-30s  %s\n", d.ID, d.Title, contentPreview(d.Content))
	}
	return nil
}

// contentPreview flattens content to a single short line for listings.
func contentPreview(content string) string {
	preview := strings.ReplaceAll(content, "\n", " ")
	if utf8.RuneCountInString(preview) <= docsPreviewLength {
		return preview
	}
	runes := []rune(preview)
	return string(runes[:docsPreviewLength]) + "..."
}

func runDocsAdd(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: ragkit docs add <title> <content>")
	}
	title := args[0]
	content := strings.Join(args[1:], " ")

	doc, err := a.Documents.Add(ctx, title, content)
	if err != nil {
		return fmt.Errorf("adding document: %w", err)
	}
	fmt.Printf("added document %d: %s\n", doc.ID, doc.Title)
	return nil
}

func runDocsDelete(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ragkit docs delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid document ID %q", args[0])
	}

	if err := a.Documents.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	fmt.Printf("deleted document %d\n", id)
	return nil
}
