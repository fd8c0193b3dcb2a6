// Package events carries per-item progress out of the pipeline.
//
// The pipeline emits an ItemEvent whenever a record finishes a stage.
// Handlers registered on an Emitter receive the events one at a time, so a
// handler that writes to a terminal needs no locking of its own.
package events
