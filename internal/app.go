package internal

import (
	"cad-lab/contract"
	"cad-lab/designer"
	"cad-lab/executor"
	"cad-lab/infrastructure/storage"
	"cad-lab/llm"
	"cad-lab/moderation"
	"cad-lab/observability"
	"cad-lab/rag"
	"cad-lab/runtime/workers"
	"cad-lab/services"
	"cad-lab/teams"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// App holds the long lived components shared by the binaries.
type App struct {
	Config    Config
	DB        *badger.DB
	Monitor   *observability.Monitor
	Health    *workers.HealthMonitoringWorker
	Executor  *executor.Executor
	Tools     *designer.Registry
	Builder   *teams.Builder
	Docs      *rag.Store
	Messages  contract.IMessageRepository
	Sessions  contract.ISessionRepository
	Artifacts contract.IArtifactRepository
	log       *slog.Logger
}

// NewApp opens the stores and wires the executor, CAD tools and teams.
// Docs stays nil when RAG is disabled.
func NewApp(ctx context.Context, config Config, log *slog.Logger) (*App, error) {
	app := &App{Config: config, log: log}

	db, err := badger.Open(buildBadgerOpts(ctx, config, log))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	app.DB = db
	app.Messages = storage.NewMessageRepository(db, log, config.LimitMessages)
	app.Sessions = storage.NewSessionRepository(db, log)
	app.Artifacts = storage.NewArtifactRepository(db, log)

	if config.EnableRAG {
		docs, err := rag.Open(config.RagFilepath, config.RagCollection, log)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Docs = docs
	}

	app.Monitor = observability.NewMonitor(log)
	app.Health = workers.NewHealthMonitoringWorker(log, app.Monitor, config.MetricInterval)

	guard, err := moderation.NewCodeGuard(moderation.DefaultForbiddenCalls)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Executor = executor.New(executor.Config{
		WorkDir: config.WorkDir,
		Python:  config.PythonBin,
		Timeout: config.ExecTimeout,
	}, guard, log, executor.WithTracker(app.Health), executor.WithRecorder(app.Monitor))
	app.Tools = designer.NewRegistry(app.Executor, log)

	defs, err := teams.Load(config.TeamsFile, teams.Vars{WorkDir: config.WorkDir})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Builder = teams.NewBuilder(defs, log)
	return app, nil
}

func buildBadgerOpts(ctx context.Context, config Config, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// Splitter is the chunking configured for the documentation store.
func (a *App) Splitter() rag.Splitter {
	return rag.NewSplitter(a.Config.ChunkSize, a.Config.ChunkOverlap)
}

// Deps are the team dependencies for one front-end. Human may be nil.
func (a *App) Deps(provider, selector llm.Provider, human contract.HumanInput) teams.Deps {
	deps := teams.Deps{
		Provider: provider,
		Selector: selector,
		Tools:    a.Tools,
		Executor: a.Executor,
		Human:    human,
		Recorder: a.Monitor,
	}
	if a.Docs != nil {
		deps.Retriever = a.Docs
	}
	return deps
}

func (a *App) ChatService(deps teams.Deps) *services.ChatService {
	return services.NewChatService(a.Builder, deps, a.Config.WorkDir, a.log,
		services.WithRepositories(a.Messages, a.Sessions, a.Artifacts),
		services.WithCounter(a.Monitor),
	)
}

func (a *App) Close() error {
	var firstErr error
	if a.Docs != nil {
		a.log.Info("Closing documentation store...")
		if err := a.Docs.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		a.log.Info("Closing BadgerDB...")
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Providers resolves the chat model and the speaker selection model.
// Without LLM_MODEL the default fallback list is used.
func Providers(config Config, keys llm.Keys, log *slog.Logger) (llm.Provider, llm.Provider, error) {
	var provider llm.Provider
	if config.Model == "" {
		cfgs, err := llm.DefaultConfigList(keys)
		if err != nil {
			return nil, nil, err
		}
		if provider, err = llm.NewFromList(cfgs, log); err != nil {
			return nil, nil, err
		}
	} else {
		p, err := resolve(config.Model, keys, log)
		if err != nil {
			return nil, nil, err
		}
		provider = p
	}

	if config.SelectorModel == "" {
		return provider, nil, nil
	}
	selector, err := resolve(config.SelectorModel, keys, log)
	if err != nil {
		return nil, nil, fmt.Errorf("speaker selection model: %w", err)
	}
	return provider, selector, nil
}

func resolve(model string, keys llm.Keys, log *slog.Logger) (llm.Provider, error) {
	cfg, err := llm.Resolve(llm.DefaultCatalog(), model, keys)
	if err != nil {
		return nil, err
	}
	return llm.New(cfg, log)
}
