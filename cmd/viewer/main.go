package main

import (
	"cad-lab/internal"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Viewer stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// BypassLockGuard lets the viewer open the store while the server holds it.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	viewerStats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	endpoint := "/inspect"
	inspector := internal.NewInspector(db, internal.WithMapper(internal.StorageMapper), internal.WithStats(viewerStats))
	srv := internal.ServeInspector(inspector, fmt.Sprintf("0.0.0.0:%d", config.DebugPort), endpoint, logger)
	logger.Info("Viewer started", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
