package services

import (
	"cad-lab/contract"
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/groupchat"
	"cad-lab/sink"
	"cad-lab/teams"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IChatService interface {
	Run(ctx context.Context, team, prompt string, sinks ...contract.MessageSink) (ChatOutcome, error)
	Teams() []teams.TeamDef
}

// ChatOutcome is a finished design conversation and the files it produced.
type ChatOutcome struct {
	Result    domain.ChatResult `json:"result"`
	Artifacts []domain.Artifact `json:"artifacts"`
	STLPath   string            `json:"stl_path"`
}

// ChatCounter is told about every conversation started.
type ChatCounter interface {
	IncrChats()
	IncrRounds()
}

type ChatService struct {
	builder   *teams.Builder
	deps      teams.Deps
	workDir   string
	messages  contract.IMessageRepository
	sessions  contract.ISessionRepository
	artifacts contract.IArtifactRepository
	counter   ChatCounter
	log       *slog.Logger
}

type Option func(*ChatService)

func WithRepositories(messages contract.IMessageRepository, sessions contract.ISessionRepository, artifacts contract.IArtifactRepository) Option {
	return func(s *ChatService) {
		s.messages = messages
		s.sessions = sessions
		s.artifacts = artifacts
	}
}

func WithCounter(counter ChatCounter) Option {
	return func(s *ChatService) { s.counter = counter }
}

func NewChatService(builder *teams.Builder, deps teams.Deps, workDir string, log *slog.Logger, opts ...Option) *ChatService {
	s := &ChatService{builder: builder, deps: deps, workDir: workDir, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatService) Teams() []teams.TeamDef {
	return s.builder.Definitions().Teams()
}

// Run plays one chat mode on a design problem.
// A failed conversation still returns what was said before the failure.
func (s *ChatService) Run(ctx context.Context, team, prompt string, sinks ...contract.MessageSink) (ChatOutcome, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ChatOutcome{}, errors.ErrEmptyPrompt
	}
	chat, err := s.builder.Build(team, s.deps)
	if err != nil {
		return ChatOutcome{}, err
	}

	session := domain.Session{ID: uuid.New(), Team: team, Prompt: prompt, StartedAt: time.Now().UTC()}
	log := s.log.With("session", session.ID, "team", team)
	s.storeSession(log, session)
	if s.counter != nil {
		s.counter.IncrChats()
	}

	timeline := sink.NewTimeline()
	all := []contract.MessageSink{timeline}
	var transcript *sink.DiskSink
	if s.messages != nil {
		disk := sink.NewDiskSink(s.messages, log)
		transcript = &disk
		all = append(all, disk)
	}
	all = append(all, sinks...)
	opts := []groupchat.Option{groupchat.WithSession(session.ID), groupchat.WithSinks(all...)}
	if s.counter != nil {
		opts = append(opts, groupchat.WithRoundCounter(s.counter))
	}

	log.Info("Chat started")
	result, runErr := chat.Run(ctx, prompt, opts...)
	if len(result.History) == 0 {
		result.History = timeline.Snapshot()
	}

	session.FinishedAt = time.Now().UTC()
	session.StopReason = result.StopReason
	session.Rounds = result.Rounds
	s.storeSession(log, session)

	outcome := ChatOutcome{Result: result, STLPath: FindSTLPath(result.History, s.workDir)}
	artifacts, err := ScanArtifacts(s.workDir, session.StartedAt)
	if err != nil {
		log.Warn("Artifact scan failed", "error", err)
	}
	for i := range artifacts {
		artifacts[i].SessionID = session.ID
		if s.artifacts != nil {
			if err := s.artifacts.Store(artifacts[i]); err != nil {
				log.Warn("Failed to store artifact", "name", artifacts[i].Name, "error", err)
			}
		}
	}
	outcome.Artifacts = artifacts

	if runErr != nil {
		log.Error("Chat failed", "rounds", result.Rounds, "error", runErr)
		return outcome, fmt.Errorf("chat %s: %w", team, runErr)
	}
	if transcript != nil && transcript.Stored() < int64(len(result.History)) {
		log.Warn("Transcript is incomplete", "stored", transcript.Stored(), "messages", len(result.History))
	}
	log.Info("Chat finished", "rounds", result.Rounds, "stop_reason", result.StopReason, "artifacts", len(artifacts))
	return outcome, nil
}

func (s *ChatService) storeSession(log *slog.Logger, session domain.Session) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Store(session); err != nil {
		log.Warn("Failed to store session", "error", err)
	}
}
