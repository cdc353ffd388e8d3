package llm

import (
	"cad-lab/errors"
	"fmt"
)

// Vendor identifies which API family serves a model.
type Vendor string

const (
	VendorGroq      Vendor = "groq"
	VendorGoogle    Vendor = "google"
	VendorAnthropic Vendor = "anthropic"
	VendorOpenAI    Vendor = "openai"
)

const (
	GroqURL      = "https://api.groq.com/openai/v1/chat/completions"
	OpenAIURL    = "https://api.openai.com/v1/chat/completions"
	GoogleURL    = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
	AnthropicURL = "https://api.anthropic.com/v1/messages"
)

// BaseURL returns the chat endpoint used for a vendor.
func (v Vendor) BaseURL() (string, error) {
	switch v {
	case VendorGroq:
		return GroqURL, nil
	case VendorOpenAI:
		return OpenAIURL, nil
	case VendorGoogle:
		return GoogleURL, nil
	case VendorAnthropic:
		return AnthropicURL, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownVendor, v)
	}
}

// KeyEnv is the environment variable carrying the vendor API key.
func (v Vendor) KeyEnv() string {
	switch v {
	case VendorGroq:
		return "GROQ_API_KEY"
	case VendorGoogle:
		return "GEMINI_API_KEY"
	case VendorAnthropic:
		return "ANTHROPIC_API_KEY"
	case VendorOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

type ModelInfo struct {
	Name   string
	Vendor Vendor
}

// Catalog is the ordered list of models a user may pick from.
type Catalog struct {
	models []ModelInfo
	index  map[string]int
}

func NewCatalog(models ...ModelInfo) *Catalog {
	c := &Catalog{index: make(map[string]int)}
	for _, m := range models {
		if _, ok := c.index[m.Name]; ok {
			continue
		}
		c.index[m.Name] = len(c.models)
		c.models = append(c.models, m)
	}
	return c
}

// DefaultCatalog lists every model the design assistant has been used with.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		ModelInfo{"gemma-7b-it", VendorGroq},
		ModelInfo{"gemma2-9b-it", VendorGroq},
		ModelInfo{"llama-3.1-70b-versatile", VendorGroq},
		ModelInfo{"llama-3.1-8b-instant", VendorGroq},
		ModelInfo{"llama-3.2-11b-text-preview", VendorGroq},
		ModelInfo{"llama-3.2-11b-vision-preview", VendorGroq},
		ModelInfo{"llama-3.2-1b-preview", VendorGroq},
		ModelInfo{"llama-3.2-3b-preview", VendorGroq},
		ModelInfo{"llama-3.2-90b-text-preview", VendorGroq},
		ModelInfo{"llama-3.2-90b-vision-preview", VendorGroq},
		ModelInfo{"llama-guard-3-8b", VendorGroq},
		ModelInfo{"llama3-70b-8192", VendorGroq},
		ModelInfo{"llama3-8b-8192", VendorGroq},
		ModelInfo{"llama3-groq-70b-8192-tool-use-preview", VendorGroq},
		ModelInfo{"llama3-groq-8b-8192-tool-use-preview", VendorGroq},
		ModelInfo{"llava-v1.5-7b-4096-preview", VendorGroq},
		ModelInfo{"mixtral-8x7b-32768", VendorGroq},
		ModelInfo{"gemini-1.5-flash", VendorGoogle},
		ModelInfo{"gemini-1.5-flash-8b", VendorGoogle},
		ModelInfo{"gemini-1.5-pro", VendorGoogle},
		ModelInfo{"claude-3-opus-20240229", VendorAnthropic},
		ModelInfo{"claude-3-sonnet-20240229", VendorAnthropic},
		ModelInfo{"claude-3-5-sonnet-20241022", VendorAnthropic},
		ModelInfo{"claude-3-5-haiku-20241022", VendorAnthropic},
		ModelInfo{"gpt-3.5-turbo", VendorOpenAI},
		ModelInfo{"gpt-4-turbo", VendorOpenAI},
		ModelInfo{"gpt-4o", VendorOpenAI},
	)
}

// Models returns the catalog in insertion order.
func (c *Catalog) Models() []ModelInfo {
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Lookup(name string) (ModelInfo, error) {
	i, ok := c.index[name]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: %q", errors.ErrUnknownModel, name)
	}
	return c.models[i], nil
}

// At returns the model shown at a 1-based menu position.
func (c *Catalog) At(position int) (ModelInfo, error) {
	if position < 1 || position > len(c.models) {
		return ModelInfo{}, fmt.Errorf("%w: selection %d out of range 1..%d", errors.ErrUnknownModel, position, len(c.models))
	}
	return c.models[position-1], nil
}
