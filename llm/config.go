package llm

import (
	"cad-lab/errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultTemperature = 0.3
	DefaultSeed        = 25
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 10 * time.Minute
	DefaultMaxAttempts = 3
)

// Keys carries the vendor API keys, read from the environment.
type Keys struct {
	Groq      string `envconfig:"GROQ_API_KEY"`
	Gemini    string `envconfig:"GEMINI_API_KEY"`
	Anthropic string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAI    string `envconfig:"OPENAI_API_KEY"`
}

func LoadKeys() (Keys, error) {
	var keys Keys
	if err := envconfig.Process("", &keys); err != nil {
		return Keys{}, fmt.Errorf("loading api keys: %w", err)
	}
	return keys, nil
}

func (k Keys) For(vendor Vendor) (string, error) {
	var key string
	switch vendor {
	case VendorGroq:
		key = k.Groq
	case VendorGoogle:
		key = k.Gemini
	case VendorAnthropic:
		key = k.Anthropic
	case VendorOpenAI:
		key = k.OpenAI
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownVendor, vendor)
	}
	if key == "" {
		return "", fmt.Errorf("%w: set %s", errors.ErrMissingAPIKey, vendor.KeyEnv())
	}
	return key, nil
}

// With returns a copy of the keys where the vendor key is replaced.
func (k Keys) With(vendor Vendor, key string) Keys {
	switch vendor {
	case VendorGroq:
		k.Groq = key
	case VendorGoogle:
		k.Gemini = key
	case VendorAnthropic:
		k.Anthropic = key
	case VendorOpenAI:
		k.OpenAI = key
	}
	return k
}

// Config describes one model endpoint an agent can talk to.
type Config struct {
	Model       string
	Vendor      Vendor
	APIKey      string `json:"-"`
	BaseURL     string
	Temperature float64
	Seed        *int
	MaxTokens   int
	Timeout     time.Duration
	MaxAttempts int
}

func newConfig(model string, vendor Vendor, key string) (Config, error) {
	url, err := vendor.BaseURL()
	if err != nil {
		return Config{}, err
	}
	seed := DefaultSeed
	return Config{
		Model:       model,
		Vendor:      vendor,
		APIKey:      key,
		BaseURL:     url,
		Temperature: DefaultTemperature,
		Seed:        &seed,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
	}, nil
}

// Resolve builds the config of a catalog model using the matching vendor key.
func Resolve(catalog *Catalog, model string, keys Keys) (Config, error) {
	info, err := catalog.Lookup(model)
	if err != nil {
		return Config{}, err
	}
	key, err := keys.For(info.Vendor)
	if err != nil {
		return Config{}, err
	}
	return newConfig(info.Name, info.Vendor, key)
}

var defaultList = []ModelInfo{
	{"llama-3.1-70b-versatile", VendorGroq},
	{"gemini-pro", VendorGoogle},
	{"llama3-8b-8192", VendorGroq},
}

// DefaultConfigList is the ordered fallback list used when the user keeps
// the default configuration. Entries without a key are skipped.
func DefaultConfigList(keys Keys) ([]Config, error) {
	var cfgs []Config
	for _, m := range defaultList {
		key, err := keys.For(m.Vendor)
		if err != nil {
			continue
		}
		cfg, err := newConfig(m.Name, m.Vendor, key)
		if err != nil {
			return nil, err
		}
		cfgs = append(cfgs, cfg)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%w: set GROQ_API_KEY or GEMINI_API_KEY", errors.ErrMissingAPIKey)
	}
	return cfgs, nil
}
