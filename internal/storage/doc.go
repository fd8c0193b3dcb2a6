// Package storage owns the on-disk layout of a batch run: downloaded
// originals, transformed variants, rendered documents, reports, the catalog
// snapshot and logs. Every write is atomic so a crash never leaves a
// half-written artifact that a later run would mistake for a cache hit.
package storage
