package executor

import (
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/mocks"
	"cad-lab/moderation"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newShellExecutor runs "python" blocks with /bin/sh so tests do not need a python install.
func newShellExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	guard, err := moderation.NewCodeGuard(moderation.DefaultForbiddenCalls)
	require.NoError(t, err)
	cfg := Config{WorkDir: t.TempDir(), Python: "/bin/sh", Timeout: 2 * time.Second}
	return New(cfg, guard, logs.GetLoggerFromLevel(slog.LevelDebug), opts...)
}

type recorderStub struct {
	files     []string
	exitCodes []int
}

func (r *recorderStub) RecordExecution(file string, exitCode int, _ time.Duration) {
	r.files = append(r.files, file)
	r.exitCodes = append(r.exitCodes, exitCode)
}

func TestExecutor_Execute(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tracker := mocks.NewMockProcessTracker(ctrl)
	recorder := &recorderStub{}
	exec := newShellExecutor(t, WithTracker(tracker), WithRecorder(recorder))

	t.Run("should run the block and report the child process", func(t *testing.T) {
		req := require.New(t)
		tracker.EXPECT().Track(gomock.Any()).Do(func(p domain.Process) {
			req.Positive(int(p.PID))
			req.Equal("plate.py", p.Label)
		})

		res := exec.Execute(context.Background(), []CodeBlock{{Lang: "python", Code: "# filename: plate.py\necho plate exported"}})

		req.Equal(0, res.ExitCode)
		req.Contains(res.Output, "plate exported")
		req.Equal("exitcode: 0 (execution succeeded)\nCode output: plate exported\n", res.Reply())
		req.Len(res.Files, 1)
		req.FileExists(filepath.Join(exec.WorkDir(), "plate.py"))
		req.Equal([]string{"plate.py"}, recorder.files)
	})

	t.Run("should stop at the first failing block", func(t *testing.T) {
		req := require.New(t)
		tracker.EXPECT().Track(gomock.Any()).Times(1)

		res := exec.Execute(context.Background(), []CodeBlock{
			{Lang: "python", Code: "echo broken >&2\nexit 3"},
			{Lang: "python", Code: "echo never"},
		})

		req.Equal(3, res.ExitCode)
		req.Contains(res.Output, "broken")
		req.NotContains(res.Output, "never")
		req.Contains(res.Reply(), "exitcode: 3 (execution failed)")
	})

	t.Run("should refuse forbidden calls without running them", func(t *testing.T) {
		req := require.New(t)
		tracker.EXPECT().Track(gomock.Any()).Times(0)

		res := exec.Execute(context.Background(), []CodeBlock{{Lang: "python", Code: "import os\nos.system('rm -rf /')"}})

		req.Equal(1, res.ExitCode)
		req.Contains(res.Output, "os.system")
		req.Empty(res.Files)
	})

	t.Run("should reject unsupported languages", func(t *testing.T) {
		req := require.New(t)
		res := exec.Execute(context.Background(), []CodeBlock{{Lang: "sh", Code: "ls"}})
		req.Equal(1, res.ExitCode)
		req.Contains(res.Output, errors.ErrUnsupportedLang.Error())
	})

	t.Run("should reject file names escaping the work dir", func(t *testing.T) {
		req := require.New(t)
		res := exec.Execute(context.Background(), []CodeBlock{{Lang: "python", Code: "# filename: ../escape.py\necho x"}})
		req.Equal(1, res.ExitCode)
		req.Contains(res.Output, errors.ErrUnsafeFilename.Error())
		_, err := os.Stat(filepath.Join(filepath.Dir(exec.WorkDir()), "escape.py"))
		req.True(os.IsNotExist(err))
	})
}

func TestExecutor_Timeout(t *testing.T) {
	req := require.New(t)
	exec := newShellExecutor(t)
	exec.cfg.Timeout = 100 * time.Millisecond

	res := exec.Execute(context.Background(), []CodeBlock{{Lang: "python", Code: "sleep 5"}})

	req.Equal(timeoutExitCode, res.ExitCode)
	req.Contains(res.Output, "Timeout")
}

func TestExecutor_ExecuteFromHistory(t *testing.T) {
	exec := newShellExecutor(t)
	code := func(s string) string { return "```python\n" + s + "\n```" }

	tests := []struct {
		name     string
		history  []string
		lastN    int
		expected string
		err      error
	}{
		{
			name:     "Newest message with code wins",
			history:  []string{code("echo old"), "Some review", code("echo new")},
			lastN:    3,
			expected: "new",
		},
		{
			name:     "Scans back past messages without code",
			history:  []string{code("echo first"), "Looks fine", ""},
			lastN:    3,
			expected: "first",
		},
		{
			name:    "Code older than lastN is ignored",
			history: []string{code("echo too old"), "a", "b", "c"},
			lastN:   3,
			err:     errors.ErrNoCodeBlock,
		},
		{
			name:    "Empty history",
			history: nil,
			lastN:   3,
			err:     errors.ErrNoCodeBlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			var history []domain.Message
			for _, content := range tt.history {
				history = append(history, domain.NewMessage("CadQuery_Code_Writer", domain.RoleAssistant, content))
			}

			res, err := exec.ExecuteFromHistory(context.Background(), history, tt.lastN)

			if tt.err != nil {
				req.ErrorIs(err, tt.err)
				return
			}
			req.NoError(err)
			req.Equal(0, res.ExitCode)
			req.Contains(res.Output, tt.expected)
		})
	}
}
