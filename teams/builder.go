package teams

import (
	"cad-lab/agents"
	"cad-lab/contract"
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/groupchat"
	"cad-lab/llm"
	"context"
	"fmt"
	"log/slog"
)

// Deps are the shared services agents are wired to.
// Selector picks speakers in auto mode, Provider is used when it is nil.
type Deps struct {
	Provider  llm.Provider
	Selector  llm.Provider
	Tools     agents.Toolbox
	Executor  agents.CodeExecutor
	Retriever contract.Retriever
	Human     contract.HumanInput
	Recorder  agents.UsageRecorder
}

type Builder struct {
	defs *Definitions
	log  *slog.Logger
}

func NewBuilder(defs *Definitions, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{defs: defs, log: log}
}

func (b *Builder) Definitions() *Definitions {
	return b.defs
}

// Chat is a team ready for one conversation. Agents are fresh, so nothing
// carries over from a previous chat.
type Chat struct {
	Team      TeamDef
	Initiator *agents.Agent
	Group     groupchat.GroupChat
	log       *slog.Logger
}

// Build instantiates the agents of a team.
func (b *Builder) Build(team string, deps Deps) (*Chat, error) {
	def, err := b.defs.Team(team)
	if err != nil {
		return nil, err
	}

	built := make(map[string]*agents.Agent)
	get := func(name string) (*agents.Agent, error) {
		if a, ok := built[name]; ok {
			return a, nil
		}
		a, err := b.agent(name, def, deps)
		if err != nil {
			return nil, err
		}
		built[name] = a
		return a, nil
	}

	initiator, err := get(def.Initiator)
	if err != nil {
		return nil, err
	}
	members := make([]*agents.Agent, 0, len(def.Agents))
	for _, name := range def.Agents {
		a, err := get(name)
		if err != nil {
			return nil, err
		}
		members = append(members, a)
	}

	selector := deps.Selector
	if selector == nil {
		selector = deps.Provider
	}
	return &Chat{
		Team:      def,
		Initiator: initiator,
		Group: groupchat.GroupChat{
			Agents:             members,
			MaxRound:           def.MaxRound,
			SpeakerSelection:   domain.SpeakerSelection(def.SpeakerSelection),
			AllowRepeatSpeaker: def.AllowRepeatSpeaker,
			AllowedTransitions: def.Transitions,
			SendIntroductions:  def.SendIntroductions,
			FuncCallFilter:     def.FuncCallFilter,
			Selector:           selector,
			Human:              deps.Human,
		},
		log: b.log.With("team", def.Name),
	}, nil
}

func (b *Builder) agent(name string, team TeamDef, deps Deps) (*agents.Agent, error) {
	def, err := b.defs.Agent(name)
	if err != nil {
		return nil, err
	}
	cfg := agents.Config{
		Name:                    def.Name,
		SystemMessage:           def.SystemMessage,
		Description:             def.Description,
		Kind:                    domain.AgentKind(def.Kind),
		HumanInputMode:          domain.HumanInputMode(def.HumanInputMode),
		MaxConsecutiveAutoReply: def.MaxConsecutiveAutoReply,
		DefaultAutoReply:        def.DefaultAutoReply,
		LastNMessages:           def.LastNMessages,
		NResults:                team.NResults,
		Multimodal:              def.Multimodal || domain.AgentKind(def.Kind) == domain.KindMultimodal,
		Human:                   deps.Human,
		Recorder:                deps.Recorder,
	}
	if def.UsesModel() {
		if deps.Provider == nil {
			return nil, fmt.Errorf("agent %s: %w", name, errors.ErrNoProvider)
		}
		cfg.Provider = deps.Provider
	}
	if def.Tools {
		if deps.Tools == nil {
			return nil, fmt.Errorf("agent %s needs the CAD tools", name)
		}
		cfg.Tools = deps.Tools
	}
	if def.ExecuteCode {
		if deps.Executor == nil {
			return nil, fmt.Errorf("agent %s needs a code executor", name)
		}
		cfg.Executor = deps.Executor
	}
	if def.RAG {
		if deps.Retriever == nil {
			return nil, fmt.Errorf("agent %s: %w", name, errors.ErrStoreNotBuilt)
		}
		cfg.Retriever = deps.Retriever
	}
	return agents.New(cfg, b.log), nil
}

// Run plays the conversation opened by the initiator with the given prompt.
func (c *Chat) Run(ctx context.Context, prompt string, opts ...groupchat.Option) (domain.ChatResult, error) {
	if c.Team.TwoAgent {
		recipient := c.Group.Agents[0]
		for _, a := range c.Group.Agents {
			if a != c.Initiator {
				recipient = a
				break
			}
		}
		return groupchat.InitiateChat(ctx, c.log, c.Initiator, recipient, prompt, c.Team.MaxTurns, opts...)
	}
	return groupchat.NewManager(c.Group, c.log, opts...).Run(ctx, c.Initiator, prompt)
}
