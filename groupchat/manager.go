package groupchat

import (
	"cad-lab/agents"
	"cad-lab/contract"
	"cad-lab/domain"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// RoundCounter is told about every round played.
type RoundCounter interface {
	IncrRounds()
}

type options struct {
	session uuid.UUID
	sinks   []contract.MessageSink
	rounds  RoundCounter
}

type Option func(*options)

func WithSession(id uuid.UUID) Option {
	return func(o *options) { o.session = id }
}

func WithSinks(sinks ...contract.MessageSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

func WithRoundCounter(counter RoundCounter) Option {
	return func(o *options) { o.rounds = counter }
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.session == uuid.Nil {
		o.session = uuid.New()
	}
	return o
}

// Manager drives a group chat round by round.
type Manager struct {
	chat GroupChat
	log  *slog.Logger
	opts options
}

func NewManager(chat GroupChat, log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if chat.MaxRound <= 0 {
		chat.MaxRound = DefaultMaxRound
	}
	if chat.SpeakerSelection == "" {
		chat.SpeakerSelection = domain.SelectAuto
	}
	return &Manager{chat: chat, log: log, opts: newOptions(opts)}
}

func (m *Manager) SessionID() uuid.UUID {
	return m.opts.session
}

// Run opens the chat with the initiator's message and lets the group talk
// until a stop condition. The partial result is returned with any error.
func (m *Manager) Run(ctx context.Context, initiator *agents.Agent, message string) (domain.ChatResult, error) {
	if err := m.chat.validate(); err != nil {
		return domain.ChatResult{}, err
	}
	conv := newConversation(m.opts, m.log)
	selector := &speakerSelector{chat: &m.chat, log: m.log, usage: conv.usage}
	participants := append([]*agents.Agent{}, m.chat.Agents...)
	if _, ok := m.chat.Agent(initiator.Name()); !ok {
		participants = append(participants, initiator)
	}

	if m.chat.SendIntroductions {
		conv.publish(ctx, m.chat.Introduction())
	}
	first, err := initiator.InitialMessage(ctx, message)
	if err != nil {
		return conv.result(participants, ""), err
	}
	conv.play(ctx, first)
	last := initiator.Name()

	m.log.Info("Group chat started",
		"session", conv.id, "agents", len(m.chat.Agents), "selection", m.chat.SpeakerSelection, "max_round", m.chat.MaxRound)

	for conv.rounds < m.chat.MaxRound {
		if ctx.Err() != nil {
			return conv.result(participants, domain.StopCanceled), nil
		}
		speaker, err := selector.next(ctx, last, conv.history)
		if err != nil {
			return conv.result(participants, ""), err
		}
		reply, err := speaker.GenerateReply(ctx, conv.history)
		if err != nil {
			if ctx.Err() != nil {
				return conv.result(participants, domain.StopCanceled), nil
			}
			return conv.result(participants, ""), fmt.Errorf("round %d: %w", conv.rounds+1, err)
		}
		if reply.Stop != "" {
			m.log.Info("Group chat stopped", "session", conv.id, "by", speaker.Name(), "reason", reply.Stop, "rounds", conv.rounds)
			return conv.result(participants, reply.Stop), nil
		}
		if len(reply.Messages) == 0 {
			return conv.result(participants, domain.StopNoReply), nil
		}
		conv.play(ctx, reply.Messages...)
		last = speaker.Name()
	}
	m.log.Info("Group chat reached max round", "session", conv.id, "rounds", conv.rounds)
	return conv.result(participants, domain.StopMaxRound), nil
}

// InitiateChat runs a two-agent exchange where the recipient answers the
// sender's message and both take turns. maxTurns counts exchanges, zero
// leaves the agents' own limits in charge.
func InitiateChat(ctx context.Context, log *slog.Logger, sender, recipient *agents.Agent, message string, maxTurns int, opts ...Option) (domain.ChatResult, error) {
	if log == nil {
		log = slog.Default()
	}
	conv := newConversation(newOptions(opts), log)
	participants := []*agents.Agent{sender, recipient}

	first, err := sender.InitialMessage(ctx, message)
	if err != nil {
		return conv.result(participants, ""), err
	}
	conv.play(ctx, first)
	log.Info("Two agent chat started", "session", conv.id, "sender", sender.Name(), "recipient", recipient.Name())

	speakers := [2]*agents.Agent{recipient, sender}
	for turn := 0; maxTurns <= 0 || conv.rounds < 2*maxTurns; turn++ {
		if ctx.Err() != nil {
			return conv.result(participants, domain.StopCanceled), nil
		}
		speaker := speakers[turn%2]
		reply, err := speaker.GenerateReply(ctx, conv.history)
		if err != nil {
			if ctx.Err() != nil {
				return conv.result(participants, domain.StopCanceled), nil
			}
			return conv.result(participants, ""), fmt.Errorf("turn %d: %w", conv.rounds+1, err)
		}
		if reply.Stop != "" {
			log.Info("Two agent chat stopped", "session", conv.id, "by", speaker.Name(), "reason", reply.Stop)
			return conv.result(participants, reply.Stop), nil
		}
		if len(reply.Messages) == 0 {
			return conv.result(participants, domain.StopNoReply), nil
		}
		conv.play(ctx, reply.Messages...)
	}
	return conv.result(participants, domain.StopMaxRound), nil
}

// conversation is the shared state of one run: history, sinks and counters.
type conversation struct {
	id      uuid.UUID
	history []domain.Message
	usage   map[string]domain.Usage
	rounds  int
	opts    options
	log     *slog.Logger
}

func newConversation(opts options, log *slog.Logger) *conversation {
	return &conversation{
		id:    opts.session,
		usage: make(map[string]domain.Usage),
		opts:  opts,
		log:   log,
	}
}

// play appends the messages of one turn and counts the round.
func (c *conversation) play(ctx context.Context, msgs ...domain.Message) {
	c.publish(ctx, msgs...)
	c.rounds++
	if c.opts.rounds != nil {
		c.opts.rounds.IncrRounds()
	}
}

func (c *conversation) publish(ctx context.Context, msgs ...domain.Message) {
	for _, msg := range msgs {
		msg.SessionID = c.id
		c.history = append(c.history, msg)
		for _, sink := range c.opts.sinks {
			if err := sink.Consume(ctx, msg); err != nil {
				c.log.Warn("Sink failed", "session", c.id, "error", err)
			}
		}
	}
}

func (c *conversation) result(participants []*agents.Agent, stop domain.StopReason) domain.ChatResult {
	usage := make(map[string]domain.Usage, len(c.usage))
	for model, u := range c.usage {
		usage[model] = u
	}
	for _, a := range participants {
		for model, u := range a.Usage() {
			usage[model] = usage[model].Add(u)
		}
	}
	return domain.ChatResult{
		SessionID:  c.id,
		History:    c.history,
		Summary:    Summary(c.history),
		Usage:      usage,
		Rounds:     c.rounds,
		StopReason: stop,
	}
}

// Summary is the last meaningful content of the conversation, with a
// trailing TERMINATE removed.
func Summary(history []domain.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role == domain.RoleSystem {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if agents.IsTermination(m) {
			content = strings.TrimSpace(content[:len(content)-len(domain.TerminationKeyword)])
		}
		if content != "" {
			return content
		}
	}
	return ""
}
