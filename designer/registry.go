// Package designer exposes the parametric CAD parts as functions an LLM can call.
package designer

import (
	"cad-lab/cad"
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/executor"
	"cad-lab/llm"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const toolPrefix = "create_"

// ScriptRunner runs a rendered script inside its work directory.
type ScriptRunner interface {
	RunScript(ctx context.Context, name, code string) executor.Result
	WorkDir() string
}

// Function is one CAD part creation exposed as a tool.
type Function struct {
	Name        string
	Description string
	Kind        string
	newParams   func() cad.Shape
}

// Registry maps tool names to CAD functions.
type Registry struct {
	functions map[string]Function
	runner    ScriptRunner
	validate  *validator.Validate
	log       *slog.Logger
}

// NewRegistry registers every shape the cad package can render.
func NewRegistry(runner ScriptRunner, log *slog.Logger) *Registry {
	r := &Registry{
		functions: make(map[string]Function),
		runner:    runner,
		validate:  validator.New(),
		log:       log,
	}
	for _, kind := range cad.Kinds() {
		d, _ := cad.Describe(kind)
		r.functions[toolPrefix+kind] = Function{
			Name:        toolPrefix + kind,
			Description: d.Description,
			Kind:        kind,
			newParams:   d.New,
		}
	}
	return r
}

func (r *Registry) Names() []string {
	names := lo.Keys(r.functions)
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	_, ok := r.functions[name]
	return ok
}

// Definitions returns the tool list sent to the model, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	return lo.Map(r.Names(), func(name string, _ int) llm.ToolDefinition {
		f := r.functions[name]
		return llm.ToolDefinition{
			Name:        f.Name,
			Description: f.Description,
			InputSchema: Schema(f.newParams()),
		}
	})
}

// Call decodes and validates the arguments, then builds the part.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	f, ok := r.functions[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownTool, name)
	}
	params := f.newParams()
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding arguments: %w", err)
	}
	if err = json.Unmarshal(raw, params); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	if err = r.validate.Struct(params); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %s", name, describeValidation(err))
	}

	script, err := cad.Render(params)
	if err != nil {
		return "", err
	}
	r.log.Debug("Running cad function", "tool", name, "script", script.FileName)
	res := r.runner.RunScript(ctx, script.FileName, script.Code)
	if !res.Succeeded() {
		return "", fmt.Errorf("%s script failed: %s", name, strings.TrimSpace(res.Reply()))
	}

	paths := lo.Map(script.Outputs, func(out string, _ int) string {
		return filepath.Join(r.runner.WorkDir(), out)
	})
	return fmt.Sprintf("%s model created and saved as %s", script.Title, strings.Join(paths, ", ")), nil
}

// Execute runs a tool call and reports failures as error results.
func (r *Registry) Execute(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	out, err := r.Call(ctx, call.Name, call.Arguments)
	if err != nil {
		r.log.Warn("Cad function failed", "tool", call.Name, "error", err)
		return domain.ToolResult{CallID: call.ID, Name: call.Name, Content: "Error: " + err.Error(), IsError: true}
	}
	return domain.ToolResult{CallID: call.ID, Name: call.Name, Content: out}
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
		if fe.Param() == "" {
			return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	})
	return strings.Join(msgs, "; ")
}
