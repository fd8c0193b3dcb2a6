// Package pipeline wires the stages together: fetch pulls records and
// downloads their originals, transform produces style variants and guides
// for every downloaded record, and run does both in one pass. Each entry
// point records itself in the run ledger when one is configured.
package pipeline
