// Package api is the HTTP front-end of the design chats.
package api

import (
	"cad-lab/auth"
	"cad-lab/contract"
	"cad-lab/errors"
	"cad-lab/observability"
	"cad-lab/rag"
	"cad-lab/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

const HealthPath = "/healthz"

type ChatRunner interface {
	Run(ctx context.Context, team, prompt string, sinks ...contract.MessageSink) (services.ChatOutcome, error)
}

type DocsAsker interface {
	Ask(ctx context.Context, question string) (rag.Answer, error)
}

type StatsProvider interface {
	Snapshot() observability.MonitoringStats
}

type Server struct {
	chats       ChatRunner
	defaultTeam string
	messages    contract.IMessageRepository
	docs        DocsAsker
	stats       StatsProvider
	signer      *auth.Signer
	chatTimeout time.Duration
	validate    *validator.Validate
	log         *slog.Logger
}

type Option func(*Server)

func WithMessages(repo contract.IMessageRepository) Option {
	return func(s *Server) { s.messages = repo }
}

// WithDocs enables /rag/ask.
func WithDocs(docs DocsAsker) Option {
	return func(s *Server) { s.docs = docs }
}

func WithStats(stats StatsProvider) Option {
	return func(s *Server) { s.stats = stats }
}

// WithSigner requires a bearer token on every route but the health check.
func WithSigner(signer auth.Signer) Option {
	return func(s *Server) { s.signer = &signer }
}

func WithChatTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.chatTimeout = timeout }
}

func NewServer(chats ChatRunner, defaultTeam string, log *slog.Logger, opts ...Option) *Server {
	s := &Server{chats: chats, defaultTeam: defaultTeam, validate: validator.New(), log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /cadchat/", s.handleChat)
	mux.HandleFunc("GET /agents/{agent}", s.handleAgent)
	mux.HandleFunc("GET /sessions/{id}/messages", s.handleMessages)
	mux.HandleFunc("POST /rag/ask", s.handleAsk)
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)

	if s.signer == nil {
		return mux
	}
	return s.signer.Middleware(mux, HealthPath)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

// decode reads and validates a JSON body.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.ErrInvalidRequest
	}
	if err := s.validate.Struct(dst); err != nil {
		return errors.ErrInvalidRequest
	}
	return nil
}
