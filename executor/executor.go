// Package executor runs the code blocks written by agents inside a work directory.
package executor

import (
	"bytes"
	"cad-lab/contract"
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/moderation"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultWorkDir       = "NewCADs"
	DefaultPython        = "python3"
	DefaultTimeout       = 2 * time.Minute
	DefaultLastNMessages = 3

	timeoutExitCode = 124
	waitDelay       = 500 * time.Millisecond
)

type Config struct {
	WorkDir       string
	Python        string
	Timeout       time.Duration
	LastNMessages int
}

func (c Config) withDefaults() Config {
	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir
	}
	if c.Python == "" {
		c.Python = DefaultPython
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LastNMessages <= 0 {
		c.LastNMessages = DefaultLastNMessages
	}
	return c
}

// Recorder is told about every script run.
type Recorder interface {
	RecordExecution(file string, exitCode int, took time.Duration)
}

type Option func(*Executor)

func WithTracker(tracker contract.ProcessTracker) Option {
	return func(e *Executor) { e.tracker = tracker }
}

func WithRecorder(recorder Recorder) Option {
	return func(e *Executor) { e.recorder = recorder }
}

type Executor struct {
	cfg      Config
	guard    *moderation.CodeGuard
	tracker  contract.ProcessTracker
	recorder Recorder
	log      *slog.Logger
}

func New(cfg Config, guard *moderation.CodeGuard, log *slog.Logger, opts ...Option) *Executor {
	e := &Executor{cfg: cfg.withDefaults(), guard: guard, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) WorkDir() string {
	return e.cfg.WorkDir
}

func (e *Executor) LastNMessages() int {
	return e.cfg.LastNMessages
}

// Result is the outcome of running one or more blocks.
type Result struct {
	ExitCode int
	Output   string
	Files    []string
}

func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Reply formats the result the way agents read it back.
func (r Result) Reply() string {
	status := "execution succeeded"
	if !r.Succeeded() {
		status = "execution failed"
	}
	return fmt.Sprintf("exitcode: %d (%s)\nCode output: %s", r.ExitCode, status, r.Output)
}

// Execute runs the blocks in order and stops at the first failure.
func (e *Executor) Execute(ctx context.Context, blocks []CodeBlock) Result {
	var (
		outputs []string
		files   []string
	)
	for i, block := range blocks {
		e.log.Debug("Executing code block", "index", i, "lang", block.Lang)
		if block.Lang != DefaultLang {
			outputs = append(outputs, fmt.Sprintf("%v: %s", errors.ErrUnsupportedLang, block.Lang))
			return Result{ExitCode: 1, Output: strings.Join(outputs, "\n"), Files: files}
		}

		name, err := FileName(block.Code, block.Lang)
		if err != nil {
			outputs = append(outputs, err.Error())
			return Result{ExitCode: 1, Output: strings.Join(outputs, "\n"), Files: files}
		}
		res := e.RunScript(ctx, name, block.Code)
		files = append(files, res.Files...)
		outputs = append(outputs, res.Output)
		if !res.Succeeded() {
			return Result{ExitCode: res.ExitCode, Output: strings.Join(outputs, "\n"), Files: files}
		}
	}
	return Result{Output: strings.Join(outputs, "\n"), Files: files}
}

// ExecuteFromHistory runs the code of the newest message holding some,
// looking at most lastN messages back.
func (e *Executor) ExecuteFromHistory(ctx context.Context, history []domain.Message, lastN int) (Result, error) {
	if lastN <= 0 {
		lastN = e.cfg.LastNMessages
	}
	for i := 0; i < lastN && i < len(history); i++ {
		msg := history[len(history)-1-i]
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		blocks := ExtractCodeBlocks(msg.Content)
		if len(blocks) == 0 {
			continue
		}
		return e.Execute(ctx, blocks), nil
	}
	return Result{}, errors.ErrNoCodeBlock
}

// RunScript guards, writes and runs one python script under the work directory.
func (e *Executor) RunScript(ctx context.Context, name, code string) Result {
	if e.guard != nil {
		if err := e.guard.Check(code); err != nil {
			e.log.Warn("Refusing to run script", "file", name, "error", err)
			return Result{ExitCode: 1, Output: err.Error()}
		}
	}

	path, err := e.write(name, code)
	if err != nil {
		return Result{ExitCode: 1, Output: err.Error()}
	}

	start := time.Now()
	exitCode, output := e.run(ctx, name)
	took := time.Since(start)
	if e.recorder != nil {
		e.recorder.RecordExecution(name, exitCode, took)
	}
	e.log.Info("Script executed", "file", path, "exit_code", exitCode, "took", took)
	return Result{ExitCode: exitCode, Output: output, Files: []string{path}}
}

func (e *Executor) write(name, code string) (string, error) {
	root, err := filepath.Abs(e.cfg.WorkDir)
	if err != nil {
		return "", fmt.Errorf("resolving work dir: %w", err)
	}
	path := filepath.Join(root, name)
	if rel, err := filepath.Rel(root, path); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s", errors.ErrUnsafeFilename, name)
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}
	if err = os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("writing script: %w", err)
	}
	return path, nil
}

func (e *Executor) run(ctx context.Context, name string) (int, string) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, e.cfg.Python, name)
	cmd.Dir = e.cfg.WorkDir
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay
	setPlatformSpecificAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return 1, fmt.Sprintf("starting %s: %v", e.cfg.Python, err)
	}
	if e.tracker != nil {
		e.tracker.Track(domain.Process{PID: domain.PID(cmd.Process.Pid), Label: name})
	}

	err := cmd.Wait()
	output := out.String()
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutExitCode, output + "\nTimeout"
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitCode(), output
		}
		return 1, output + err.Error()
	}
	return 0, output
}
