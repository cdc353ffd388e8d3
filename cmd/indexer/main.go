package main

import (
	"cad-lab/internal"
	"cad-lab/rag"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	code, err := run()
	if err != nil {
		slog.Error("Indexing failed", "error", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	refresh := flag.Bool("refresh", false, "drop the collection and index the documentation again")
	query := flag.String("query", "", "print the chunks matching a query once the store is ready")
	flag.Parse()
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *refresh {
		logger.Info("Dropping documentation store", "path", config.RagFilepath)
		if err := os.RemoveAll(filepath.Clean(config.RagFilepath)); err != nil {
			return exitRuntime, fmt.Errorf("failed to drop the store: %w", err)
		}
	}

	store, err := rag.Open(config.RagFilepath, config.RagCollection, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = store.Close() }()

	count, err := store.Build(ctx, config.DocsDir, rag.NewSplitter(config.ChunkSize, config.ChunkOverlap))
	if err != nil {
		return exitRuntime, err
	}
	logger.Info("Documentation store ready", "collection", config.RagCollection, "chunks", count)

	if *query == "" {
		return exitOK, nil
	}
	chunks, err := store.Query(ctx, *query, rag.DefaultK)
	if err != nil {
		return exitRuntime, err
	}
	for i, c := range chunks {
		fmt.Printf("%d. %s (%.3f)\n%s\n\n", i+1, c.Source, c.Score, c.Content)
	}
	return exitOK, nil
}
