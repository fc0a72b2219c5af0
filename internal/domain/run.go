package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// RunState tracks one execution call through its lifecycle.
type RunState int

const (
	RunStatePending RunState = iota
	RunStateRunning
	RunStateCompleted
	RunStateFailed
	RunStateCancelled
)

func (s RunState) String() string {
	switch s {
	case RunStatePending:
		return "pending"
	case RunStateRunning:
		return "running"
	case RunStateCompleted:
		return "completed"
	case RunStateFailed:
		return "failed"
	case RunStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var ErrInvalidRunState = errors.New("invalid run state")

func ParseRunState(s string) (RunState, error) {
	switch s {
	case "pending":
		return RunStatePending, nil
	case "running":
		return RunStateRunning, nil
	case "completed":
		return RunStateCompleted, nil
	case "failed":
		return RunStateFailed, nil
	case "cancelled":
		return RunStateCancelled, nil
	default:
		return RunStatePending, fmt.Errorf("%w: %s", ErrInvalidRunState, s)
	}
}

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCancelled:
		return true
	default:
		return false
	}
}

// Run is the metadata of one execution call. The conversation itself is
// never stored here; callers own their history.
type Run struct {
	ID         string
	Provider   string
	Model      string
	Prompt     string
	WorkingDir string
	State      RunState
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Result     string
	Error      string
	ErrorKind  ErrorKind

	mu sync.RWMutex
}

func NewRun(id, provider, model, prompt, workingDir string) *Run {
	now := time.Now()
	return &Run{
		ID:         id,
		Provider:   provider,
		Model:      model,
		Prompt:     prompt,
		WorkingDir: workingDir,
		State:      RunStatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (r *Run) GetState() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// Begin moves a pending run to running.
func (r *Run) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = RunStateRunning
	r.UpdatedAt = time.Now()
}

// Complete records terminal success and the final textual answer.
func (r *Run) Complete(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = RunStateCompleted
	r.Result = result
	r.UpdatedAt = time.Now()
}

// Fail records terminal failure.
func (r *Run) Fail(kind ErrorKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = RunStateFailed
	r.Error = message
	r.ErrorKind = kind
	r.UpdatedAt = time.Now()
}

// Cancel records caller-initiated termination. Not a failure.
func (r *Run) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = RunStateCancelled
	r.UpdatedAt = time.Now()
}

// RunSnapshot is a point-in-time, lock-free copy of a Run's fields.
type RunSnapshot struct {
	ID         string
	Provider   string
	Model      string
	Prompt     string
	WorkingDir string
	State      RunState
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Result     string
	Error      string
	ErrorKind  ErrorKind
}

// Snapshot returns an atomic copy of the run under its read lock.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RunSnapshot{
		ID:         r.ID,
		Provider:   r.Provider,
		Model:      r.Model,
		Prompt:     r.Prompt,
		WorkingDir: r.WorkingDir,
		State:      r.State,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Result:     r.Result,
		Error:      r.Error,
		ErrorKind:  r.ErrorKind,
	}
}
