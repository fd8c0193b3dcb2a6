package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a recorded pipeline run.
type RunStatus string

// Run statuses. A run moves pending -> processing -> completed or failed.
const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransition reports whether a run in status s may move to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusProcessing || next == RunStatusFailed
	case RunStatusProcessing:
		return next.IsTerminal()
	default:
		return false
	}
}

// RunCounts are the item and attempt counts recorded for a run.
type RunCounts struct {
	Items     int `json:"items"`
	Attempts  int `json:"attempts"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Run is one invocation of a pipeline command as recorded in the ledger.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Command      string     `json:"command"`
	Status       RunStatus  `json:"status"`
	Counts       RunCounts  `json:"counts"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewRun creates a pending run for command.
func NewRun(command string) (*Run, error) {
	if command == "" {
		return nil, fmt.Errorf("%w: run command cannot be empty", ErrValidation)
	}
	now := time.Now().UTC()
	return &Run{
		ID:        uuid.New(),
		Command:   command,
		Status:    RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
