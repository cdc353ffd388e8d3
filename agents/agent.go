// Package agents holds the conversable agents taking part in design chats.
// An agent answers the conversation it is shown: it can hand the turn to a
// human, run tools, execute code blocks, call a model or fall back to a
// canned reply.
package agents

import (
	"cad-lab/contract"
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/executor"
	"cad-lab/llm"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"
)

const (
	DefaultMaxConsecutiveAutoReply = 100
	DefaultNResults                = 3
	maxToolRounds                  = 5
	exitCommand                    = "exit"
)

// Toolbox executes the functions an agent exposes to its model.
type Toolbox interface {
	Definitions() []llm.ToolDefinition
	Has(name string) bool
	Execute(ctx context.Context, call domain.ToolCall) domain.ToolResult
}

// CodeExecutor runs the code blocks found in the recent history.
type CodeExecutor interface {
	ExecuteFromHistory(ctx context.Context, history []domain.Message, lastN int) (executor.Result, error)
}

type UsageRecorder interface {
	RecordLLMCall(usage domain.Usage, err error)
}

type Config struct {
	Name                    string
	SystemMessage           string
	Description             string
	Kind                    domain.AgentKind
	HumanInputMode          domain.HumanInputMode
	MaxConsecutiveAutoReply int
	DefaultAutoReply        string
	IsTermination           func(domain.Message) bool
	Provider                llm.Provider
	Tools                   Toolbox
	Executor                CodeExecutor
	LastNMessages           int
	Retriever               contract.Retriever
	NResults                int
	Multimodal              bool
	Human                   contract.HumanInput
	Recorder                UsageRecorder
}

// Reply is what an agent hands back for one turn.
// Messages is empty when the agent ended the conversation.
type Reply struct {
	Messages []domain.Message
	Stop     domain.StopReason
}

func (r Reply) Last() (domain.Message, bool) {
	if len(r.Messages) == 0 {
		return domain.Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}

type Agent struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	autoReply map[string]int
	usage     map[string]domain.Usage
	problem   string
	offset    int
}

func New(cfg Config, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Kind == "" {
		cfg.Kind = domain.KindAssistant
	}
	if cfg.HumanInputMode == "" {
		cfg.HumanInputMode = domain.HumanNever
	}
	if cfg.HumanInputMode != domain.HumanNever && cfg.Human == nil {
		log.Warn("No human input available, agent will reply on its own", "agent", cfg.Name)
		cfg.HumanInputMode = domain.HumanNever
	}
	if cfg.MaxConsecutiveAutoReply <= 0 {
		cfg.MaxConsecutiveAutoReply = DefaultMaxConsecutiveAutoReply
	}
	if cfg.IsTermination == nil {
		cfg.IsTermination = IsTermination
	}
	if cfg.LastNMessages <= 0 {
		cfg.LastNMessages = executor.DefaultLastNMessages
	}
	if cfg.NResults <= 0 {
		cfg.NResults = DefaultNResults
	}
	if cfg.Description == "" {
		cfg.Description = cfg.SystemMessage
	}
	return &Agent{
		cfg:       cfg,
		log:       log.With("agent", cfg.Name),
		autoReply: make(map[string]int),
		usage:     make(map[string]domain.Usage),
	}
}

// IsTermination reports whether a message ends with TERMINATE, ignoring
// trailing whitespace and case.
func IsTermination(msg domain.Message) bool {
	content := strings.TrimSpace(msg.Content)
	if len(content) < len(domain.TerminationKeyword) {
		return false
	}
	return strings.ToUpper(content[len(content)-len(domain.TerminationKeyword):]) == domain.TerminationKeyword
}

func (a *Agent) Name() string { return a.cfg.Name }

func (a *Agent) Description() string { return a.cfg.Description }

func (a *Agent) Kind() domain.AgentKind { return a.cfg.Kind }

func (a *Agent) IsTermination(m domain.Message) bool { return a.cfg.IsTermination(m) }

// CanExecute reports whether the agent owns the tool with the given name.
func (a *Agent) CanExecute(tool string) bool {
	return a.cfg.Tools != nil && a.cfg.Tools.Has(tool)
}

// Usage returns the tokens consumed so far, keyed by model.
func (a *Agent) Usage() map[string]domain.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]domain.Usage, len(a.usage))
	for k, v := range a.usage {
		out[k] = v
	}
	return out
}

// Reset forgets reply counters, token usage and the retrieval cursor.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoReply = make(map[string]int)
	a.usage = make(map[string]domain.Usage)
	a.problem = ""
	a.offset = 0
}

// InitialMessage builds the message that opens a chat started by this agent.
// A retrieval proxy wraps the problem with the first documentation chunks.
func (a *Agent) InitialMessage(ctx context.Context, problem string) (domain.Message, error) {
	if strings.TrimSpace(problem) == "" {
		return domain.Message{}, errors.ErrEmptyPrompt
	}
	if a.cfg.Retriever == nil {
		return domain.NewMessage(a.cfg.Name, domain.RoleUser, problem), nil
	}
	a.mu.Lock()
	a.problem = problem
	a.offset = 0
	a.mu.Unlock()

	content, err := a.nextContext(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.NewMessage(a.cfg.Name, domain.RoleUser, content), nil
}

// GenerateReply produces this agent's turn given the whole conversation so far.
func (a *Agent) GenerateReply(ctx context.Context, history []domain.Message) (Reply, error) {
	if len(history) == 0 {
		return Reply{Stop: domain.StopNoReply}, nil
	}
	last := history[len(history)-1]

	human, stop, err := a.humanReply(ctx, last)
	if err != nil {
		return Reply{}, err
	}
	if stop != "" {
		return Reply{Stop: stop}, nil
	}
	if human != nil {
		return a.reply(*human), nil
	}

	if a.cfg.Retriever != nil && asksForContext(last.Content) {
		content, err := a.nextContext(ctx)
		if err != nil {
			return Reply{}, err
		}
		return a.reply(domain.NewMessage(a.cfg.Name, domain.RoleUser, content)), nil
	}

	if msg, ok := a.toolReply(ctx, last); ok {
		return a.reply(msg), nil
	}

	if a.cfg.Executor != nil {
		res, err := a.cfg.Executor.ExecuteFromHistory(ctx, history, a.cfg.LastNMessages)
		switch {
		case err == nil:
			return a.reply(domain.NewMessage(a.cfg.Name, domain.RoleUser, res.Reply())), nil
		case !stderrors.Is(err, errors.ErrNoCodeBlock):
			return Reply{}, err
		}
	}

	if a.cfg.Provider != nil {
		msgs, err := a.modelReply(ctx, history)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Messages: msgs}, nil
	}

	return a.reply(domain.NewMessage(a.cfg.Name, domain.RoleUser, a.cfg.DefaultAutoReply)), nil
}

func (a *Agent) reply(msg domain.Message) Reply {
	return Reply{Messages: []domain.Message{msg}}
}

// humanReply asks the human when the input mode calls for it and keeps the
// per-sender auto reply counter. A non nil message is the human's answer; a
// stop reason ends the conversation; neither means the agent goes on by itself.
func (a *Agent) humanReply(ctx context.Context, last domain.Message) (*domain.Message, domain.StopReason, error) {
	sender := last.Name
	terminate := a.cfg.IsTermination(last)

	a.mu.Lock()
	count := a.autoReply[sender]
	a.mu.Unlock()

	var answer string
	var asked bool
	var err error
	switch a.cfg.HumanInputMode {
	case domain.HumanAlways:
		answer, err = a.ask(ctx, fmt.Sprintf(
			"Replying as %s. Provide feedback to %s. Press enter to skip and use auto-reply, or type 'exit' to end the conversation: ",
			a.cfg.Name, sender))
		asked = true
		if err == nil && answer == "" && terminate {
			return nil, domain.StopTermination, nil
		}
	case domain.HumanNever:
		if count >= a.cfg.MaxConsecutiveAutoReply {
			a.resetCounter(sender)
			return nil, domain.StopMaxAutoReply, nil
		}
		if terminate {
			a.resetCounter(sender)
			return nil, domain.StopTermination, nil
		}
	case domain.HumanTerminate:
		if count >= a.cfg.MaxConsecutiveAutoReply || terminate {
			prompt := "Please give feedback to %s. Press enter or type 'exit' to stop the conversation: "
			if !terminate {
				prompt = "Please give feedback to %s. Press enter to skip and use auto-reply, or type 'exit' to stop the conversation: "
			}
			answer, err = a.ask(ctx, fmt.Sprintf(prompt, sender))
			asked = true
			if err == nil && answer == "" && terminate {
				a.resetCounter(sender)
				return nil, domain.StopTermination, nil
			}
		}
	}
	if err != nil {
		return nil, "", err
	}

	if asked && strings.EqualFold(answer, exitCommand) {
		a.resetCounter(sender)
		return nil, domain.StopHumanExit, nil
	}
	if answer != "" {
		a.resetCounter(sender)
		msg := domain.NewMessage(a.cfg.Name, domain.RoleUser, answer)
		return &msg, "", nil
	}

	a.mu.Lock()
	a.autoReply[sender]++
	a.mu.Unlock()
	if a.cfg.HumanInputMode != domain.HumanNever {
		a.log.Debug("Using auto reply", "sender", sender)
	}
	return nil, "", nil
}

func (a *Agent) ask(ctx context.Context, prompt string) (string, error) {
	answer, err := a.cfg.Human.Ask(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("ask human for %s: %w", a.cfg.Name, err)
	}
	return strings.TrimSpace(answer), nil
}

func (a *Agent) resetCounter(sender string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoReply[sender] = 0
}

// toolReply runs the tool calls carried by the last message when this agent owns all of them.
func (a *Agent) toolReply(ctx context.Context, last domain.Message) (domain.Message, bool) {
	if a.cfg.Tools == nil || !last.HasToolCalls() {
		return domain.Message{}, false
	}
	if !lo.EveryBy(last.ToolCalls, func(c domain.ToolCall) bool { return a.cfg.Tools.Has(c.Name) }) {
		return domain.Message{}, false
	}
	return a.runTools(ctx, last.ToolCalls), true
}

func (a *Agent) runTools(ctx context.Context, calls []domain.ToolCall) domain.Message {
	msg := domain.NewMessage(a.cfg.Name, domain.RoleTool, "")
	for _, call := range calls {
		res := a.cfg.Tools.Execute(ctx, call)
		if res.IsError {
			a.log.Warn("Tool call failed", "tool", call.Name, "error", res.Content)
		}
		msg.ToolResults = append(msg.ToolResults, res)
	}
	return msg
}

// modelReply calls the model and keeps running the tools it asks for until it
// answers with text or the tool round budget is spent.
func (a *Agent) modelReply(ctx context.Context, history []domain.Message) ([]domain.Message, error) {
	req := llm.Request{
		System:   a.cfg.SystemMessage,
		Messages: a.llmMessages(history),
	}
	if a.cfg.Tools != nil {
		req.Tools = a.cfg.Tools.Definitions()
	}

	var produced []domain.Message
	for round := 0; ; round++ {
		res, err := a.cfg.Provider.Complete(ctx, req)
		a.recordUsage(res, err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.cfg.Name, err)
		}
		msg := domain.NewMessage(a.cfg.Name, domain.RoleAssistant, res.Content)
		msg.ToolCalls = res.ToolCalls
		produced = append(produced, msg)

		if !msg.HasToolCalls() || a.cfg.Tools == nil {
			return produced, nil
		}
		results := a.runTools(ctx, msg.ToolCalls)
		produced = append(produced, results)
		if round+1 >= maxToolRounds {
			a.log.Warn("Tool round budget spent", "rounds", maxToolRounds)
			return produced, nil
		}
		req.Messages = append(req.Messages, msg, results)
	}
}

func (a *Agent) recordUsage(res llm.Response, err error) {
	if a.cfg.Recorder != nil {
		a.cfg.Recorder.RecordLLMCall(res.Usage, err)
	}
	if err != nil {
		return
	}
	model := res.Model
	if model == "" {
		model = a.cfg.Provider.Name()
	}
	a.mu.Lock()
	a.usage[model] = a.usage[model].Add(res.Usage)
	a.mu.Unlock()
}

// llmMessages rewrites the shared history from this agent's point of view:
// its own turns become assistant turns, everybody else speaks as the user.
// Tool results only keep their structure when they answer this agent's calls.
func (a *Agent) llmMessages(history []domain.Message) []domain.Message {
	own := make(map[string]struct{})
	out := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Name == a.cfg.Name && m.HasToolCalls() {
			for _, c := range m.ToolCalls {
				own[c.ID] = struct{}{}
			}
		}
		switch {
		case len(m.ToolResults) > 0 && lo.EveryBy(m.ToolResults, func(r domain.ToolResult) bool {
			_, ok := own[r.CallID]
			return ok
		}):
			out = append(out, domain.Message{Name: m.Name, Role: domain.RoleTool, ToolResults: m.ToolResults})
		case m.Name == a.cfg.Name:
			out = append(out, domain.Message{Name: m.Name, Role: domain.RoleAssistant, Content: m.Content, ToolCalls: m.ToolCalls})
		default:
			out = append(out, a.asUser(m))
		}
	}
	return out
}

func (a *Agent) asUser(m domain.Message) domain.Message {
	content := m.Text()
	for _, c := range m.ToolCalls {
		content = strings.TrimSpace(fmt.Sprintf("%s\n(%s requested %s)", content, m.Name, c.Name))
	}
	msg := domain.Message{Name: m.Name, Role: domain.RoleUser, Content: content, Images: append([]domain.Image(nil), m.Images...)}
	if a.cfg.Multimodal {
		msg = a.withImages(msg)
	}
	return msg
}
