package main

import (
	"cad-lab/auth"
	"cad-lab/infrastructure/api"
	"cad-lab/infrastructure/grpc/server"
	"cad-lab/internal"
	"cad-lab/llm"
	"cad-lab/rag"
	"cad-lab/runtime/workers"
	"cad-lab/teams"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	code, err := run()
	if err != nil {
		slog.Error("Server stopped", "error", err)
	}
	os.Exit(code)
}

// run keeps every defer inside one function so that the stores are closed
// and the workers drained before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Stores, executor and teams
	app, err := internal.NewApp(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Closing stores failed", "error", err)
		}
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		inspector := internal.NewInspector(app.DB, internal.WithMapper(internal.StorageMapper), internal.WithStats(internal.MonitorStats(app.Monitor)))
		debug := internal.ServeInspector(inspector, fmt.Sprintf("0.0.0.0:%d", config.DebugPort), endpoint, logger)
		defer func() { _ = debug.Close() }()
	}

	// 3. Model endpoints
	keys, err := llm.LoadKeys()
	if err != nil {
		return exitConfig, err
	}
	provider, selector, err := internal.Providers(config, keys, logger)
	if err != nil {
		return exitConfig, err
	}
	chats := app.ChatService(app.Deps(provider, selector, nil))

	// 4. Front-ends
	opts := []api.Option{
		api.WithMessages(app.Messages),
		api.WithStats(app.Monitor),
		api.WithChatTimeout(config.ChatTimeout),
	}
	var signer *auth.Signer
	if config.JWTSecret != "" {
		signer = lo.ToPtr(auth.NewSigner(config.JWTSecret))
		opts = append(opts, api.WithSigner(*signer))
		logger.Info("JWT authentication enabled")
	}
	if app.Docs != nil {
		opts = append(opts, api.WithDocs(rag.NewQA(app.Docs, provider, rag.DefaultK)))
	}
	httpServer := &http.Server{
		Addr:              config.HTTPAddr(),
		Handler:           api.NewServer(chats, config.DefaultTeam, logger, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	teamNames := lo.Map(chats.Teams(), func(t teams.TeamDef, _ int) string { return t.Name })
	grpcServer, health := server.NewServer(logger, signer, teamNames)
	grpcWorker := workers.NewGRPCServerWorker(grpcServer, config.GRPCAddr(), logger)
	grpcWorker.OnStart = health.SetServing
	grpcWorker.OnStop = health.Stop

	// 5. Supervised workers
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(
		workers.NewHTTPServerWorker(httpServer, logger),
		grpcWorker,
		app.Health,
		app.Monitor,
	)
	if app.Docs != nil {
		supervisor.Add(workers.NewIndexWorker(app.Docs, config.DocsDir, app.Splitter(), logger))
	}

	supervisor.Run(ctx)
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}
