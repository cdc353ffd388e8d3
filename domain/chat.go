package domain

import (
	"time"

	"github.com/google/uuid"
)

type StopReason string

const (
	StopMaxRound     StopReason = "max_round"
	StopTermination  StopReason = "termination"
	StopHumanExit    StopReason = "human_exit"
	StopMaxAutoReply StopReason = "max_auto_reply"
	StopCanceled     StopReason = "canceled"
	StopNoReply      StopReason = "no_reply"
)

// ChatResult is what a finished conversation hands back to its caller.
type ChatResult struct {
	SessionID  uuid.UUID
	History    []Message
	Summary    string
	Usage      map[string]Usage // keyed by model
	Rounds     int
	StopReason StopReason
}

// TotalUsage sums token usage over every model that took part.
func (r ChatResult) TotalUsage() Usage {
	var total Usage
	for _, u := range r.Usage {
		total = total.Add(u)
	}
	return total
}

// Session is the stored metadata of one conversation run.
type Session struct {
	ID         uuid.UUID
	Team       string
	Prompt     string
	StartedAt  time.Time
	FinishedAt time.Time
	StopReason StopReason
	Rounds     int
}

// Artifact is a CAD file exported during a session.
type Artifact struct {
	SessionID uuid.UUID
	Name      string
	Path      string
	Format    string
	Size      int64
	At        time.Time
}

// Chunk is a piece of documentation returned by retrieval.
type Chunk struct {
	ID      string
	Source  string
	Lang    string
	Content string
	Score   float64
}
