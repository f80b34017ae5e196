package execution

import (
	"time"

	"github.com/google/uuid"
)

// State represents a workflow run state.
type State string

const (
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Process tracks one workflow run from Ready through Running to a
// terminal Completed or Failed state.
type Process struct {
	ID             string
	Workflow       string
	State          State
	StartedAt      time.Time
	FinishedAt     time.Time
	Err            error
	FailedType     string
	FailedPosition int
}

// NewProcess creates a process in the Ready state.
func NewProcess(workflow string) *Process {
	return &Process{
		ID:       uuid.New().String(),
		Workflow: workflow,
		State:    StateReady,
	}
}

// Start transitions the process to Running.
func (p *Process) Start() {
	p.State = StateRunning
	p.StartedAt = time.Now()
}

// Complete transitions the process to the terminal Completed state.
func (p *Process) Complete() {
	p.State = StateCompleted
	p.FinishedAt = time.Now()
}

// Fail transitions the process to the terminal Failed state, recording
// the failing step's type id and position in the step list.
func (p *Process) Fail(typeID string, position int, err error) {
	p.State = StateFailed
	p.FinishedAt = time.Now()
	p.Err = err
	p.FailedType = typeID
	p.FailedPosition = position
}

// Finished reports whether the process reached a terminal state.
func (p *Process) Finished() bool {
	return p.State == StateCompleted || p.State == StateFailed
}

// Duration returns the elapsed run time.
func (p *Process) Duration() time.Duration {
	if p.StartedAt.IsZero() {
		return 0
	}
	if p.FinishedAt.IsZero() {
		return time.Since(p.StartedAt)
	}
	return p.FinishedAt.Sub(p.StartedAt)
}
