package observability

import (
	"cad-lab/domain"
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const maxRecentExecutions = 20

// RecentExecution is one script run shown on the inspect page.
type RecentExecution struct {
	File      string `json:"file"`
	ExitCode  int    `json:"exit_code"`
	Duration  string `json:"duration"`
	Timestamp string `json:"timestamp"`
}

// MonitoringStats aggregates every metric exposed by /healthz and the viewer.
type MonitoringStats struct {
	Chats            uint64 `json:"chats"`
	Rounds           uint64 `json:"rounds"`
	LLMCalls         uint64 `json:"llm_calls"`
	LLMFailures      uint64 `json:"llm_failures"`
	PromptTokens     uint64 `json:"prompt_tokens"`
	CompletionTokens uint64 `json:"completion_tokens"`
	Executions       uint64 `json:"executions"`
	FailedExecutions uint64 `json:"failed_executions"`

	// --- SYSTEM METRICS ---
	AllocMemMb       uint64                 `json:"alloc_mem_mb"`
	NumGC            uint32                 `json:"num_gc"`
	Processes        []domain.ProcessSample `json:"processes"`
	RecentExecutions []RecentExecution      `json:"recent_executions"`
}

// Monitor holds the live counters of a running instance.
type Monitor struct {
	log *slog.Logger
	mu  sync.RWMutex

	chats            atomic.Uint64
	rounds           atomic.Uint64
	llmCalls         atomic.Uint64
	llmFailures      atomic.Uint64
	promptTokens     atomic.Uint64
	completionTokens atomic.Uint64
	executions       atomic.Uint64
	failedExecutions atomic.Uint64

	allocMemMb uint64
	numGC      uint32
	processes  []domain.ProcessSample
	recent     []RecentExecution
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log}
}

func (m *Monitor) IncrChats() {
	m.chats.Add(1)
}

func (m *Monitor) IncrRounds() {
	m.rounds.Add(1)
}

// RecordLLMCall counts one completion and its token usage.
func (m *Monitor) RecordLLMCall(usage domain.Usage, err error) {
	m.llmCalls.Add(1)
	if err != nil {
		m.llmFailures.Add(1)
		return
	}
	m.promptTokens.Add(uint64(max(usage.PromptTokens, 0)))
	m.completionTokens.Add(uint64(max(usage.CompletionTokens, 0)))
}

// RecordExecution counts a script run and keeps it in the recent list.
func (m *Monitor) RecordExecution(file string, exitCode int, took time.Duration) {
	m.executions.Add(1)
	if exitCode != 0 {
		m.failedExecutions.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	exec := RecentExecution{
		File:      file,
		ExitCode:  exitCode,
		Duration:  took.Round(time.Millisecond).String(),
		Timestamp: time.Now().Format("15:04:05"),
	}
	m.recent = append([]RecentExecution{exec}, m.recent...)
	if len(m.recent) > maxRecentExecutions {
		m.recent = m.recent[:maxRecentExecutions]
	}
}

// SetProcesses replaces the latest process samples.
func (m *Monitor) SetProcesses(samples []domain.ProcessSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processes = samples
}

// Run refreshes the runtime memory metrics every second until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Monitor stopped")
			return nil
		case <-ticker.C:
			m.updateMemStats()
		}
	}
}

func (m *Monitor) updateMemStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocMemMb = ms.Alloc / 1024 / 1024
	m.numGC = ms.NumGC
}

func (m *Monitor) Snapshot() MonitoringStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MonitoringStats{
		Chats:            m.chats.Load(),
		Rounds:           m.rounds.Load(),
		LLMCalls:         m.llmCalls.Load(),
		LLMFailures:      m.llmFailures.Load(),
		PromptTokens:     m.promptTokens.Load(),
		CompletionTokens: m.completionTokens.Load(),
		Executions:       m.executions.Load(),
		FailedExecutions: m.failedExecutions.Load(),
		AllocMemMb:       m.allocMemMb,
		NumGC:            m.numGC,
		Processes:        make([]domain.ProcessSample, len(m.processes)),
		RecentExecutions: make([]RecentExecution, len(m.recent)),
	}
	copy(stats.Processes, m.processes)
	copy(stats.RecentExecutions, m.recent)
	return stats
}
