package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStageResultElapsedJSON(t *testing.T) {
	t.Parallel()

	r := Succeed("sku-1", StageTransform, "modern", "transformed/x.png", 1500*time.Millisecond)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"elapsed_ms":1500`) {
		t.Errorf("Expected elapsed_ms in %s", data)
	}
	if strings.Contains(string(data), `"Elapsed"`) {
		t.Errorf("Elapsed duration should not be encoded directly: %s", data)
	}
}

func TestFail(t *testing.T) {
	t.Parallel()

	r := Fail("sku-1", StageDownload, "", errors.New("404"), time.Second)
	if r.Succeeded {
		t.Error("Expected failed result")
	}
	if r.Error != "404" {
		t.Errorf("Expected error message 404, got %q", r.Error)
	}
	if r := Fail("sku-1", StageDownload, "", nil, 0); r.Error == "" {
		t.Error("Expected placeholder message for nil error")
	}
}

func TestItemOutcomeClassification(t *testing.T) {
	t.Parallel()

	ok := Succeed("a", StageTransform, "modern", "t.png", 0)
	bad := Fail("a", StageTransform, "retro", errors.New("blocked"), 0)
	dl := Succeed("a", StageDownload, "", "raw/a.jpg", 0)
	dlFail := Fail("a", StageDownload, "", errors.New("timeout"), 0)

	tests := []struct {
		name        string
		outcome     ItemOutcome
		wantFailed  bool
		wantPartial bool
		wantSuccess int
	}{
		{"all good", ItemOutcome{Download: &dl, Transforms: []StageResult{ok}}, false, false, 1},
		{"one of two", ItemOutcome{Download: &dl, Transforms: []StageResult{ok, bad}}, false, false, 1},
		{"none succeeded", ItemOutcome{Download: &dl, Transforms: []StageResult{bad}}, true, false, 0},
		{"download failed", ItemOutcome{Download: &dlFail}, true, false, 0},
		{"document failed", ItemOutcome{Download: &dl, Transforms: []StageResult{ok}, DocumentError: "template"}, false, true, 1},
		{"download only", ItemOutcome{Download: &dl}, false, false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.outcome.Failed(); got != tc.wantFailed {
				t.Errorf("Failed() = %v, want %v", got, tc.wantFailed)
			}
			if got := tc.outcome.Partial(); got != tc.wantPartial {
				t.Errorf("Partial() = %v, want %v", got, tc.wantPartial)
			}
			if got := len(tc.outcome.Successes()); got != tc.wantSuccess {
				t.Errorf("Successes() = %d, want %d", got, tc.wantSuccess)
			}
		})
	}
}
