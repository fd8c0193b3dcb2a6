package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewRun(t *testing.T) {
	t.Parallel()

	run, err := NewRun("transform")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.ID == uuid.Nil {
		t.Error("Expected a generated ID")
	}
	if run.Status != RunStatusPending {
		t.Errorf("Expected status pending, got %s", run.Status)
	}
	if run.CreatedAt.IsZero() || !run.CreatedAt.Equal(run.UpdatedAt) {
		t.Errorf("Expected matching creation timestamps, got %v and %v", run.CreatedAt, run.UpdatedAt)
	}
	if run.StartedAt != nil || run.FinishedAt != nil {
		t.Error("Expected a new run to be neither started nor finished")
	}

	if _, err := NewRun(""); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for empty command, got %v", err)
	}
}

func TestRunStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to RunStatus
		allowed  bool
	}{
		{RunStatusPending, RunStatusProcessing, true},
		{RunStatusPending, RunStatusFailed, true},
		{RunStatusPending, RunStatusCompleted, false},
		{RunStatusProcessing, RunStatusCompleted, true},
		{RunStatusProcessing, RunStatusFailed, true},
		{RunStatusProcessing, RunStatusPending, false},
		{RunStatusCompleted, RunStatusFailed, false},
		{RunStatusFailed, RunStatusProcessing, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestRunStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if RunStatusPending.IsTerminal() || RunStatusProcessing.IsTerminal() {
		t.Error("Expected pending and processing to be non-terminal")
	}
	if !RunStatusCompleted.IsTerminal() || !RunStatusFailed.IsTerminal() {
		t.Error("Expected completed and failed to be terminal")
	}
}
