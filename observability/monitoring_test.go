package observability

import (
	"cad-lab/domain"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Snapshot(t *testing.T) {
	req := require.New(t)
	m := NewMonitor(slog.Default())

	// Given a chat with two llm calls, one failing, and two executions
	m.IncrChats()
	m.IncrRounds()
	m.IncrRounds()
	m.RecordLLMCall(domain.Usage{PromptTokens: 10, CompletionTokens: 4}, nil)
	m.RecordLLMCall(domain.Usage{PromptTokens: 99}, fmt.Errorf("rate limited"))
	m.RecordExecution("gear.py", 0, 1500*time.Millisecond)
	m.RecordExecution("bad.py", 1, time.Second)
	m.SetProcesses([]domain.ProcessSample{{PID: 42, Label: "gear.py"}})

	stats := m.Snapshot()

	// Then failed calls do not count tokens
	req.Equal(uint64(1), stats.Chats)
	req.Equal(uint64(2), stats.Rounds)
	req.Equal(uint64(2), stats.LLMCalls)
	req.Equal(uint64(1), stats.LLMFailures)
	req.Equal(uint64(10), stats.PromptTokens)
	req.Equal(uint64(4), stats.CompletionTokens)
	req.Equal(uint64(2), stats.Executions)
	req.Equal(uint64(1), stats.FailedExecutions)
	req.Len(stats.Processes, 1)

	// Then the most recent execution comes first
	req.Equal("bad.py", stats.RecentExecutions[0].File)
	req.Equal("1.5s", stats.RecentExecutions[1].Duration)
}

func TestMonitor_RecentExecutionsAreBounded(t *testing.T) {
	req := require.New(t)
	m := NewMonitor(slog.Default())
	for i := 0; i < maxRecentExecutions+5; i++ {
		m.RecordExecution(fmt.Sprintf("f%d.py", i), 0, time.Millisecond)
	}
	stats := m.Snapshot()
	req.Len(stats.RecentExecutions, maxRecentExecutions)
	req.Equal(fmt.Sprintf("f%d.py", maxRecentExecutions+4), stats.RecentExecutions[0].File)
}
