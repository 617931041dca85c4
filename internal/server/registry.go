package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/workflow"
)

// RunState tracks a single running or completed workflow execution.
type RunState struct {
	RunID     string
	Workflow  string
	Feed      *runFeed
	Cancel    context.CancelCauseFunc
	StartedAt time.Time

	mu         sync.Mutex
	result     *workflow.Result
	err        error
	done       bool
	finishedAt time.Time
}

// SetResult records the terminal outcome of the run.
func (rs *RunState) SetResult(res *workflow.Result, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.result = res
	rs.err = err
	rs.done = true
	rs.finishedAt = time.Now().UTC()
}

// Status returns the current run status for the HTTP API.
func (rs *RunState) Status() WorkflowStatus {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	status := WorkflowStatus{
		RunID:     rs.RunID,
		Workflow:  rs.Workflow,
		State:     "running",
		StartedAt: rs.StartedAt,
	}
	if rs.done {
		t := rs.finishedAt
		status.FinishedAt = &t
		switch {
		case rs.err != nil:
			status.State = workflow.StatusError
			status.FailureReason = rs.err.Error()
			if rs.result != nil {
				status.Result = rs.result
			}
		case rs.result != nil:
			status.State = rs.result.Status
			status.Result = rs.result
		}
		return status
	}

	// Extract the current step from the latest progress event.
	if rs.Feed != nil {
		history := rs.Feed.History()
		for i := len(history) - 1; i >= 0; i-- {
			if sid, ok := history[i]["step_id"].(string); ok && sid != "" {
				status.CurrentStepID = sid
				break
			}
		}
	}
	return status
}

// RunRegistry tracks all workflow runs managed by this server instance.
type RunRegistry struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewRunRegistry creates a new empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*RunState)}
}

// Register adds a run to the registry. Returns error if the ID already
// exists.
func (r *RunRegistry) Register(runID string, rs *RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[runID]; exists {
		return fmt.Errorf("run %s already exists", runID)
	}
	r.runs[runID] = rs
	return nil
}

// Get returns a run by ID, or nil and false if not found.
func (r *RunRegistry) Get(runID string) (*RunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.runs[runID]
	return rs, ok
}

// List returns all run IDs.
func (r *RunRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}

// CancelAll cancels all running workflows with the given reason.
func (r *RunRegistry) CancelAll(reason string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rs := range r.runs {
		if rs.Cancel != nil {
			rs.Cancel(fmt.Errorf("%s", reason))
		}
	}
}
