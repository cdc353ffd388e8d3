package workers

import (
	"cad-lab/rag"
	"context"
	"log/slog"
)

// IndexWorker builds the documentation store once at startup.
// A failed build returns an error so that the supervisor retries it.
type IndexWorker struct {
	store    *rag.Store
	docsDir  string
	splitter rag.Splitter
	log      *slog.Logger
	OnReady  func(chunks int)
}

func NewIndexWorker(store *rag.Store, docsDir string, splitter rag.Splitter, log *slog.Logger) *IndexWorker {
	return &IndexWorker{store: store, docsDir: docsDir, splitter: splitter, log: log}
}

func (w *IndexWorker) Run(ctx context.Context) error {
	count, err := w.store.Build(ctx, w.docsDir, w.splitter)
	if err != nil {
		return err
	}
	w.log.Info("Documentation store ready", "chunks", count, "collection", w.store.Collection())
	if w.OnReady != nil {
		w.OnReady(count)
	}
	return nil
}
