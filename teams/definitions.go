// Package teams declares the agents and the chat modes they play in.
// Definitions come from an HCL file, the embedded teams.hcl when none is given.
package teams

import (
	"cad-lab/domain"
	"cad-lab/errors"
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/samber/lo"
	"github.com/zclconf/go-cty/cty"
)

//go:embed teams.hcl
var defaultTeams []byte

const defaultFileName = "teams.hcl"

// AgentDef is one `agent "<name>" { ... }` block.
type AgentDef struct {
	Name                    string `hcl:"name,label" validate:"required"`
	Kind                    string `hcl:"kind,optional" validate:"omitempty,oneof=assistant user_proxy executor retrieve_proxy multimodal"`
	SystemMessage           string `hcl:"system_message,optional"`
	Description             string `hcl:"description,optional"`
	HumanInputMode          string `hcl:"human_input_mode,optional" validate:"omitempty,oneof=ALWAYS NEVER TERMINATE"`
	MaxConsecutiveAutoReply int    `hcl:"max_consecutive_auto_reply,optional" validate:"gte=0"`
	DefaultAutoReply        string `hcl:"default_auto_reply,optional"`
	Tools                   bool   `hcl:"tools,optional"`
	ExecuteCode             bool   `hcl:"execute_code,optional"`
	LastNMessages           int    `hcl:"last_n_messages,optional" validate:"gte=0"`
	RAG                     bool   `hcl:"rag,optional"`
	Multimodal              bool   `hcl:"multimodal,optional"`
}

// UsesModel tells whether the agent talks to a model.
func (a AgentDef) UsesModel() bool {
	kind := domain.AgentKind(a.Kind)
	return kind == "" || kind == domain.KindAssistant || kind == domain.KindMultimodal
}

// TeamDef is one `team "<name>" { ... }` block, a chat mode of the menu.
type TeamDef struct {
	Name               string              `hcl:"name,label" validate:"required"`
	Title              string              `hcl:"title" validate:"required"`
	Agents             []string            `hcl:"agents" validate:"min=1,dive,required"`
	Initiator          string              `hcl:"initiator" validate:"required"`
	MaxRound           int                 `hcl:"max_round,optional" validate:"gte=0"`
	SpeakerSelection   string              `hcl:"speaker_selection,optional" validate:"omitempty,oneof=round_robin auto random manual"`
	AllowRepeatSpeaker bool                `hcl:"allow_repeat_speaker,optional"`
	SendIntroductions  bool                `hcl:"send_introductions,optional"`
	FuncCallFilter     bool                `hcl:"func_call_filter,optional"`
	Transitions        map[string][]string `hcl:"transitions,optional"`
	TwoAgent           bool                `hcl:"two_agent,optional"`
	MaxTurns           int                 `hcl:"max_turns,optional" validate:"gte=0"`
	NResults           int                 `hcl:"n_results,optional" validate:"gte=0"`
}

type file struct {
	Agents []AgentDef `hcl:"agent,block"`
	Teams  []TeamDef  `hcl:"team,block"`
}

// Vars are the values HCL expressions may refer to.
type Vars struct {
	WorkDir string
}

func (v Vars) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"workdir":     cty.StringVal(v.WorkDir),
			"termination": cty.StringVal(domain.TerminationKeyword),
		},
	}
}

// Definitions is a validated set of agents and teams.
type Definitions struct {
	agents map[string]AgentDef
	teams  []TeamDef
}

// Load reads definitions from path, or the embedded defaults when path is empty.
func Load(path string, vars Vars) (*Definitions, error) {
	if path == "" {
		return Parse(defaultTeams, defaultFileName, vars)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read team definitions: %w", err)
	}
	return Parse(src, path, vars)
}

func Parse(src []byte, filename string, vars Vars) (*Definitions, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed file
	diags = gohcl.DecodeBody(hclFile.Body, vars.evalContext(), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	defs := &Definitions{agents: make(map[string]AgentDef, len(parsed.Agents)), teams: parsed.Teams}
	if err := defs.validate(parsed.Agents); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return defs, nil
}

func (d *Definitions) validate(agentDefs []AgentDef) error {
	validate := validator.New()
	for _, a := range agentDefs {
		if err := validate.Struct(a); err != nil {
			return fmt.Errorf("agent %q: %w", a.Name, err)
		}
		if _, dup := d.agents[a.Name]; dup {
			return fmt.Errorf("agent %q declared twice", a.Name)
		}
		d.agents[a.Name] = a
	}

	seen := make(map[string]struct{}, len(d.teams))
	for _, t := range d.teams {
		if err := validate.Struct(t); err != nil {
			return fmt.Errorf("team %q: %w", t.Name, err)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("team %q declared twice", t.Name)
		}
		seen[t.Name] = struct{}{}

		refs := append([]string{t.Initiator}, t.Agents...)
		for from, tos := range t.Transitions {
			if !lo.Contains(t.Agents, from) {
				return fmt.Errorf("team %q: %w: %q is not a member", t.Name, errors.ErrUnknownAgent, from)
			}
			refs = append(refs, tos...)
		}
		for _, name := range refs {
			if _, ok := d.agents[name]; !ok {
				return fmt.Errorf("team %q: %w: %q", t.Name, errors.ErrUnknownAgent, name)
			}
		}
		if t.TwoAgent && len(lo.Uniq(refs)) != 2 {
			return fmt.Errorf("team %q: a two agent chat needs exactly two agents", t.Name)
		}
	}
	return nil
}

// Teams returns the teams in declaration order, which is the menu order.
func (d *Definitions) Teams() []TeamDef {
	return append([]TeamDef(nil), d.teams...)
}

func (d *Definitions) Team(name string) (TeamDef, error) {
	t, ok := lo.Find(d.teams, func(t TeamDef) bool { return t.Name == name })
	if !ok {
		return TeamDef{}, fmt.Errorf("%w: %q", errors.ErrUnknownTeam, name)
	}
	return t, nil
}

func (d *Definitions) Agent(name string) (AgentDef, error) {
	a, ok := d.agents[name]
	if !ok {
		return AgentDef{}, fmt.Errorf("%w: %q", errors.ErrUnknownAgent, name)
	}
	return a, nil
}
