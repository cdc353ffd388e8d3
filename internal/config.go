package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	WorkDir         string        `env:"WORK_DIR,default=NewCADs"`
	TeamsFile       string        `env:"TEAMS_FILE"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=data/badger"`
	LimitMessages   *int          `env:"LIMIT_MESSAGES"`
	Model           string        `env:"LLM_MODEL"`
	SelectorModel   string        `env:"SELECTOR_MODEL"`
	PythonBin       string        `env:"PYTHON_BIN,default=python3"`
	ExecTimeout     time.Duration `env:"EXEC_TIMEOUT,default=60s"`
	ChatTimeout     time.Duration `env:"CHAT_TIMEOUT,default=30m"`
	EnableRAG       bool          `env:"ENABLE_RAG,default=true"`
	DocsDir         string        `env:"DOCS_DIR,default=cadquery_docs"`
	RagFilepath     string        `env:"RAG_FILEPATH,default=data/rag"`
	RagCollection   string        `env:"RAG_COLLECTION,default=cadquery"`
	ChunkSize       int           `env:"CHUNK_SIZE,default=1000"`
	ChunkOverlap    int           `env:"CHUNK_OVERLAP,default=100"`
	DefaultTeam     string        `env:"DEFAULT_TEAM,default=designers"`
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=8000"`
	GRPCPort        int           `env:"GRPC_PORT,default=50051"`
	JWTSecret       string        `env:"JWT_SECRET"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=2s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=5s"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
	Colours         bool          `env:"COLOURS,default=true"`
}

// LoadConfig reads an optional .env file then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if config.ChunkOverlap >= config.ChunkSize {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", config.ChunkOverlap, config.ChunkSize)
	}
	return config, nil
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}
