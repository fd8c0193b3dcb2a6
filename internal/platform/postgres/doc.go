// Package postgres provides the PostgreSQL adapters of the pipeline: the
// warehouse catalog source, the run ledger and the schema migrations they
// depend on. Connections go through database/sql with the pgx driver.
package postgres
