package models

import "time"

// RunStatus defines the possible states of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSuspended RunStatus = "suspended"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal runs are immutable
// and retained for audit.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// StepRecord captures one attempt of one node. Records are append-only within
// a run and never reordered; replaying them reconstructs the current node.
type StepRecord struct {
	Node       string         `json:"node"`
	Attempt    int            `json:"attempt"`
	Input      map[string]any `json:"input,omitempty"` // context snapshot at execution time
	Outcome    *StepOutcome   `json:"outcome,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Run is one execution instance of a workflow graph for one campaign.
type Run struct {
	ID              string         `json:"id"`
	CampaignID      string         `json:"campaign_id"`
	GraphName       string         `json:"graph_name"`
	EntryNode       string         `json:"entry_node"`
	CurrentNode     string         `json:"current_node"`
	Status          RunStatus      `json:"status"`
	Context         map[string]any `json:"context,omitempty"` // mutable campaign context threaded through steps
	Steps           []StepRecord   `json:"steps,omitempty"`
	Attempts        map[string]int `json:"attempts,omitempty"` // per-node attempt counters
	LastError       string         `json:"last_error,omitempty"`
	CancelRequested bool           `json:"cancel_requested"`
	Version         int64          `json:"version"` // optimistic concurrency stamp, bumped on every checkpoint
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Attempt returns the recorded attempt count for a node.
func (r *Run) Attempt(node string) int {
	if r.Attempts == nil {
		return 0
	}

	return r.Attempts[node]
}

// RecordAttempt bumps the attempt counter for a node and returns the new count.
func (r *Run) RecordAttempt(node string) int {
	if r.Attempts == nil {
		r.Attempts = make(map[string]int)
	}

	r.Attempts[node]++

	return r.Attempts[node]
}

// ResetAttempts clears a node's attempt counter. Resuming a suspended run
// resets the suspension node so the wait does not consume its retry budget.
func (r *Run) ResetAttempts(node string) {
	if r.Attempts != nil {
		delete(r.Attempts, node)
	}
}

// StepResult exposes a completed node's outcome data to later steps through
// the run context, keyed under "steps".<node>.
func (r *Run) StepResult(node string) (map[string]any, bool) {
	steps, ok := r.Context["steps"].(map[string]any)
	if !ok {
		return nil, false
	}

	data, ok := steps[node].(map[string]any)

	return data, ok
}

// SetStepResult stores a completed node's outcome data in the run context.
func (r *Run) SetStepResult(node string, data map[string]any) {
	if r.Context == nil {
		r.Context = make(map[string]any)
	}

	steps, ok := r.Context["steps"].(map[string]any)
	if !ok {
		steps = make(map[string]any)
		r.Context["steps"] = steps
	}

	steps[node] = data
}
