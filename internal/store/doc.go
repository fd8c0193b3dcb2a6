// Package store defines the persistence interfaces of the pipeline: the run
// ledger and the database access abstraction its implementations share.
package store
