package domain

import "time"

// Process is a child process started on behalf of an agent, usually a CAD script.
type Process struct {
	PID   PID
	Label string
}

type PID int32

// ProcState is the scheduler state of a process as reported by /proc.
type ProcState string

const (
	StateRunning  ProcState = "running"
	StateSleeping ProcState = "sleeping"
	StateStopped  ProcState = "stopped"
	StateIdle     ProcState = "idle"
	StateZombie   ProcState = "zombie"
	StateWaiting  ProcState = "waiting"
	StateLocked   ProcState = "locked"
	StateUnknown  ProcState = "unknown"
)

var procStates = map[string]ProcState{
	"R": StateRunning,
	"S": StateSleeping,
	"D": StateSleeping,
	"T": StateStopped,
	"I": StateIdle,
	"Z": StateZombie,
	"W": StateWaiting,
	"L": StateLocked,
}

// ParseProcState maps a one letter state code, anything else is unknown.
func ParseProcState(code string) ProcState {
	if s, ok := procStates[code]; ok {
		return s
	}
	return StateUnknown
}

// Gone tells whether the process is finished and only waits to be reaped.
func (s ProcState) Gone() bool {
	return s == StateZombie
}

// ProcessSample is one health measurement of a tracked process.
type ProcessSample struct {
	PID    PID       `json:"pid"`
	Label  string    `json:"label"`
	State  ProcState `json:"state"`
	CPU    float64   `json:"cpu_percent"`
	Memory float32   `json:"memory_percent"`
	At     time.Time `json:"at"`
}
