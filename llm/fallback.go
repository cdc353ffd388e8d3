package llm

import (
	"cad-lab/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

// FallbackProvider tries providers in order and returns the first success.
type FallbackProvider struct {
	providers []Provider
	log       *slog.Logger
}

func NewFallbackProvider(log *slog.Logger, providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers, log: log}
}

func (f *FallbackProvider) Name() string {
	names := lo.Map(f.providers, func(p Provider, _ int) string { return p.Name() })
	return strings.Join(names, ",")
}

func (f *FallbackProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if len(f.providers) == 0 {
		return Response{}, errors.ErrNoProvider
	}
	errs := []error{errors.ErrAllProviders}
	for _, p := range f.providers {
		res, err := p.Complete(ctx, req)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		f.log.Warn("Provider failed, trying next one", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return Response{}, stderrors.Join(errs...)
}
