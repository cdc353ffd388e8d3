//go:generate go run go.uber.org/mock/mockgen -source=provider.go -destination=../mocks/mock_provider.go -package=mocks
package llm

import (
	"cad-lab/domain"
	"cad-lab/errors"
	"context"
	"fmt"
	"log/slog"
)

// Provider is the unified interface for chat completion endpoints.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	// Name identifies the endpoint in logs and usage reports.
	Name() string
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type Request struct {
	System      string
	Messages    []domain.Message
	Tools       []ToolDefinition
	Temperature *float64
	MaxTokens   int
	Seed        *int
}

type Response struct {
	Content    string
	ToolCalls  []domain.ToolCall
	Usage      domain.Usage
	Model      string
	StopReason string
}

// New creates the provider serving a single config.
func New(cfg Config, log *slog.Logger) (Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Vendor {
	case VendorGroq, VendorOpenAI, VendorGoogle:
		return NewOpenAIProvider(cfg, log), nil
	case VendorAnthropic:
		return NewAnthropicProvider(cfg, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownVendor, cfg.Vendor)
	}
}

// NewFromList creates one provider per config and chains them in order.
func NewFromList(cfgs []Config, log *slog.Logger) (Provider, error) {
	if len(cfgs) == 0 {
		return nil, errors.ErrNoProvider
	}
	providers := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := New(cfg, log)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return NewFallbackProvider(log, providers...), nil
}
