// Package groupchat runs scripted conversations between agents.
// A GroupChat holds the participants and the rules picking who speaks next,
// a Manager drives the rounds until a limit or a termination is reached.
package groupchat

import (
	"cad-lab/agents"
	"cad-lab/contract"
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/llm"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultMaxRound = 10
	ManagerName     = "chat_manager"
	manualAttempts  = 3
)

type GroupChat struct {
	Agents             []*agents.Agent
	MaxRound           int
	SpeakerSelection   domain.SpeakerSelection
	AllowRepeatSpeaker bool
	// AllowedTransitions restricts who may follow a speaker, keyed by agent name.
	AllowedTransitions map[string][]string
	SendIntroductions  bool
	FuncCallFilter     bool
	// Selector is the model choosing the next speaker in auto mode.
	Selector llm.Provider
	// Human picks the next speaker in manual mode.
	Human contract.HumanInput
	// Intn draws random speakers, rand.IntN when nil.
	Intn func(n int) int
}

func (g *GroupChat) Agent(name string) (*agents.Agent, bool) {
	return lo.Find(g.Agents, func(a *agents.Agent) bool { return a.Name() == name })
}

func (g *GroupChat) Names() []string {
	return lo.Map(g.Agents, func(a *agents.Agent, _ int) string { return a.Name() })
}

// Introduction lists every participant with its description.
func (g *GroupChat) Introduction() domain.Message {
	var sb strings.Builder
	sb.WriteString("Hello everyone. We have assembled a great team today to answer questions and solve tasks. In attendance are:\n")
	for _, a := range g.Agents {
		sb.WriteString(fmt.Sprintf("\n%s: %s", a.Name(), a.Description()))
	}
	return domain.NewMessage(ManagerName, domain.RoleSystem, sb.String())
}

func (g *GroupChat) validate() error {
	if len(g.Agents) == 0 {
		return fmt.Errorf("%w: group chat has no agents", errors.ErrNoCandidate)
	}
	names := g.Names()
	for from, tos := range g.AllowedTransitions {
		for _, name := range append([]string{from}, tos...) {
			if !lo.Contains(names, name) {
				return fmt.Errorf("%w: %q in transitions", errors.ErrUnknownAgent, name)
			}
		}
	}
	return nil
}

// candidates returns the agents allowed to take the next turn, in list order.
func (g *GroupChat) candidates(last string, history []domain.Message) ([]*agents.Agent, error) {
	out := g.Agents

	if g.FuncCallFilter && len(history) > 0 {
		if msg := history[len(history)-1]; msg.HasToolCalls() {
			out = lo.Filter(out, func(a *agents.Agent, _ int) bool {
				return lo.EveryBy(msg.ToolCalls, func(c domain.ToolCall) bool { return a.CanExecute(c.Name) })
			})
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: nobody can execute the requested tools", errors.ErrNoCandidate)
			}
		}
	}

	if allowed, ok := g.AllowedTransitions[last]; ok {
		out = lo.Filter(out, func(a *agents.Agent, _ int) bool { return lo.Contains(allowed, a.Name()) })
	}

	if !g.AllowRepeatSpeaker && len(g.Agents) > 1 {
		out = lo.Filter(out, func(a *agents.Agent, _ int) bool { return a.Name() != last })
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: after %s", errors.ErrNoCandidate, last)
	}
	return out, nil
}

// speakerSelector picks the next speaker and accounts the selector's usage.
type speakerSelector struct {
	chat  *GroupChat
	log   *slog.Logger
	usage map[string]domain.Usage
}

func (s *speakerSelector) next(ctx context.Context, last string, history []domain.Message) (*agents.Agent, error) {
	candidates, err := s.chat.candidates(last, history)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	switch s.chat.SpeakerSelection {
	case domain.SelectRandom:
		intn := s.chat.Intn
		if intn == nil {
			intn = rand.IntN
		}
		return candidates[intn(len(candidates))], nil
	case domain.SelectAuto:
		return s.auto(ctx, last, candidates, history), nil
	case domain.SelectManual:
		return s.manual(ctx, last, candidates, history)
	default:
		return s.roundRobin(last, candidates), nil
	}
}

// roundRobin returns the first candidate following the last speaker in list order.
func (s *speakerSelector) roundRobin(last string, candidates []*agents.Agent) *agents.Agent {
	agentsList := s.chat.Agents
	_, idx, found := lo.FindIndexOf(agentsList, func(a *agents.Agent) bool { return a.Name() == last })
	if !found {
		idx = -1
	}
	for i := 1; i <= len(agentsList); i++ {
		next := agentsList[(idx+i)%len(agentsList)]
		if lo.Contains(candidates, next) {
			return next
		}
	}
	return candidates[0]
}

func (s *speakerSelector) auto(ctx context.Context, last string, candidates []*agents.Agent, history []domain.Message) *agents.Agent {
	if s.chat.Selector == nil {
		s.log.Warn("No selector model for auto speaker selection, using round robin")
		return s.roundRobin(last, candidates)
	}
	names := lo.Map(candidates, func(a *agents.Agent, _ int) string { return a.Name() })
	var roles strings.Builder
	for _, a := range candidates {
		roles.WriteString(fmt.Sprintf("%s: %s\n", a.Name(), a.Description()))
	}
	system := fmt.Sprintf("You are in a role play game. The following roles are available:\n%s\nRead the following conversation.\nThen select the next role from %v to play. Only return the role.",
		roles.String(), names)

	messages := lo.Map(history, func(m domain.Message, _ int) domain.Message {
		return domain.Message{Name: m.Name, Role: domain.RoleUser, Content: m.Text()}
	})
	messages = append(messages, domain.Message{
		Name:    ManagerName,
		Role:    domain.RoleUser,
		Content: fmt.Sprintf("Read the above conversation. Then select the next role from %v to play. Only return the role.", names),
	})

	res, err := s.chat.Selector.Complete(ctx, llm.Request{System: system, Messages: messages})
	if err != nil {
		s.log.Warn("Speaker selection failed, using round robin", "error", err)
		return s.roundRobin(last, candidates)
	}
	model := lo.Ternary(res.Model != "", res.Model, s.chat.Selector.Name())
	s.usage[model] = s.usage[model].Add(res.Usage)

	if picked, ok := matchSpeaker(res.Content, candidates); ok {
		return picked
	}
	s.log.Warn("Selector named no known role, using round robin", "reply", res.Content)
	return s.roundRobin(last, candidates)
}

// matchSpeaker resolves a selector answer: exact name, then case-insensitive
// name, then the single candidate mentioned in the answer.
func matchSpeaker(reply string, candidates []*agents.Agent) (*agents.Agent, bool) {
	reply = strings.TrimSpace(reply)
	if a, ok := lo.Find(candidates, func(a *agents.Agent) bool { return a.Name() == reply }); ok {
		return a, true
	}
	if a, ok := lo.Find(candidates, func(a *agents.Agent) bool { return strings.EqualFold(a.Name(), reply) }); ok {
		return a, true
	}
	lower := strings.ToLower(reply)
	mentioned := lo.Filter(candidates, func(a *agents.Agent, _ int) bool {
		name := strings.ToLower(a.Name())
		return strings.Contains(lower, name) || strings.Contains(lower, strings.ReplaceAll(name, "_", " "))
	})
	if len(mentioned) == 1 {
		return mentioned[0], true
	}
	return nil, false
}

func (s *speakerSelector) manual(ctx context.Context, last string, candidates []*agents.Agent, history []domain.Message) (*agents.Agent, error) {
	if s.chat.Human == nil {
		return s.roundRobin(last, candidates), nil
	}
	var prompt strings.Builder
	prompt.WriteString("Please select the next speaker from the following list:\n")
	for i, a := range candidates {
		prompt.WriteString(fmt.Sprintf("%d: %s\n", i+1, a.Name()))
	}
	prompt.WriteString("Enter the number of the next speaker (enter nothing or `q` to use auto selection): ")

	for attempt := 0; attempt < manualAttempts; attempt++ {
		answer, err := s.chat.Human.Ask(ctx, prompt.String())
		if err != nil {
			return nil, fmt.Errorf("ask next speaker: %w", err)
		}
		answer = strings.TrimSpace(answer)
		if answer == "" || answer == "q" {
			break
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(candidates) {
			return candidates[n-1], nil
		}
		s.log.Info("Invalid speaker selection", "answer", answer)
	}
	return s.auto(ctx, last, candidates, history), nil
}
