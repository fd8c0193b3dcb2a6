// Package domain contains the core entities of the batch pipeline: catalog
// records flowing in from the warehouse, per-stage results produced for each
// record, and the aggregate summary written at the end of a run. It has no
// dependencies on storage, transport or the external services the pipeline
// talks to.
package domain
