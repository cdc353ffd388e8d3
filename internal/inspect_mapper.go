package internal

import (
	"cad-lab/infrastructure/storage"
	"cad-lab/observability"
	"cad-lab/rag"
	"fmt"
	"strings"
	"time"
)

const detailWidth = 120

// StorageMapper decodes the records written by the repositories and the
// documentation store. Unknown keys fall back to DefaultMapper.
func StorageMapper(key string, val []byte) InspectRow {
	row := DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, "msg:"):
		m, err := storage.DecodeMessage(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE/" + strings.ToUpper(string(m.Role))
		row.Detail = shorten(fmt.Sprintf("%s: %s", m.Name, m.Text()))
		if len(m.ToolCalls) > 0 {
			row.Detail = shorten(fmt.Sprintf("%s calls %s", m.Name, m.ToolCalls[0].Name))
		}
	case strings.HasPrefix(key, "session:"):
		s, err := storage.DecodeSession(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Namespace = s.Team
		row.EntityID = s.ID.String()[:8]
		row.Timestamp = s.StartedAt.UTC().Format(time.DateTime)
		row.Detail = shorten(fmt.Sprintf("[%s, %d rounds] %s", s.StopReason, s.Rounds, s.Prompt))
		if s.FinishedAt.IsZero() {
			row.Detail = shorten(fmt.Sprintf("[running] %s", s.Prompt))
		}
	case strings.HasPrefix(key, "artifact:"):
		a, err := storage.DecodeArtifact(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "ARTIFACT/" + strings.ToUpper(a.Format)
		row.EntityID = a.Name
		row.Detail = fmt.Sprintf("%s (%d bytes)", a.Path, a.Size)
	case strings.HasPrefix(key, "chunk:"):
		c, err := rag.DecodeChunk(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.EntityID = c.ID
		row.Detail = shorten(fmt.Sprintf("[%s] %s", c.Lang, c.Content))
	}
	return row
}

func shorten(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > detailWidth {
		return string(r[:detailWidth]) + "..."
	}
	return s
}

// MonitorStats exposes the monitor counters on the inspect page.
func MonitorStats(monitor *observability.Monitor) StatsProvider {
	return func() map[string]any {
		s := monitor.Snapshot()
		return map[string]any{
			"Chats":       s.Chats,
			"Rounds":      s.Rounds,
			"LLM calls":   s.LLMCalls,
			"LLM errors":  s.LLMFailures,
			"Tokens":      s.PromptTokens + s.CompletionTokens,
			"Executions":  s.Executions,
			"Failed runs": s.FailedExecutions,
			"Processes":   len(s.Processes),
		}
	}
}
