package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config points the suites at a running server. Variables carry the E2E_ prefix.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR"`
	GRPCAddr string `envconfig:"GRPC_ADDR"`
	// Bearer token, needed when the server runs with JWT_SECRET
	Token string `envconfig:"TOKEN"`
	// A real design chat only runs when a prompt is given, the server then needs model keys
	Prompt      string        `envconfig:"PROMPT"`
	Team        string        `envconfig:"TEAM" default:"cad_coder"`
	ChatTimeout time.Duration `envconfig:"CHAT_TIMEOUT" default:"30m"`
	DebugJSON   bool          `envconfig:"DEBUG_JSON" default:"false"`
	Colours     bool          `envconfig:"COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("e2e", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
