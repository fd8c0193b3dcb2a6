package domain

import "time"

// Stage names a phase of the pipeline.
type Stage string

// Pipeline stages.
const (
	StageDownload  Stage = "download"
	StageTransform Stage = "transform"
	StageDocument  Stage = "document"
)

// Scores holds the quality and suitability scores attached to a successful
// transform. Both values are in [0, 1].
type Scores struct {
	Marketability float64 `json:"marketability"`
	Compatibility float64 `json:"compatibility"`
}

// StageResult is the outcome of one operation on one record: one per
// (record, stage) pair, or one per (record, style) pair for the transform
// stage. It is immutable once created.
type StageResult struct {
	ItemID      string        `json:"item_id"`
	Stage       Stage         `json:"stage"`
	Variant     string        `json:"variant,omitempty"`
	Succeeded   bool          `json:"succeeded"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	Error       string        `json:"error,omitempty"`
	Elapsed     time.Duration `json:"-"`
	ElapsedMS   int64         `json:"elapsed_ms"`
	SizeBytes   int64         `json:"size_bytes,omitempty"`
	Scores      *Scores       `json:"scores,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Prompt      string        `json:"prompt,omitempty"`
	Cached      bool          `json:"cached,omitempty"`
	Attempts    int           `json:"attempts"`
}

// Succeed builds a successful result.
func Succeed(itemID string, stage Stage, variant, artifact string, elapsed time.Duration) StageResult {
	return StageResult{
		ItemID:      itemID,
		Stage:       stage,
		Variant:     variant,
		Succeeded:   true,
		ArtifactRef: artifact,
		Elapsed:     elapsed,
		ElapsedMS:   elapsed.Milliseconds(),
	}
}

// Fail builds a failed result carrying err's message.
func Fail(itemID string, stage Stage, variant string, err error, elapsed time.Duration) StageResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return StageResult{
		ItemID:    itemID,
		Stage:     stage,
		Variant:   variant,
		Error:     msg,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
	}
}

// ItemOutcome groups everything the pipeline produced for one record.
// Index is the record's position in the submitted batch and is used to keep
// reports stable even though results arrive in completion order.
type ItemOutcome struct {
	Index         int           `json:"index"`
	Record        Record        `json:"record"`
	Download      *StageResult  `json:"download,omitempty"`
	Transforms    []StageResult `json:"transforms"`
	DocumentPath  string        `json:"document_path,omitempty"`
	DocumentError string        `json:"document_error,omitempty"`
}

// Successes returns the transform results that succeeded, in style order.
func (o *ItemOutcome) Successes() []StageResult {
	var out []StageResult
	for _, r := range o.Transforms {
		if r.Succeeded {
			out = append(out, r)
		}
	}
	return out
}

// Failed reports whether the item failed as a whole: its download failed,
// or none of its transforms succeeded.
func (o *ItemOutcome) Failed() bool {
	if o.Download != nil && !o.Download.Succeeded {
		return true
	}
	if len(o.Transforms) == 0 {
		return o.Download == nil
	}
	return len(o.Successes()) == 0
}

// Partial reports whether the item's transforms succeeded but a downstream
// consumer (document generation) failed for it.
func (o *ItemOutcome) Partial() bool {
	return !o.Failed() && o.DocumentError != ""
}
