// Package postgres provides PostgreSQL implementations of the store
// interfaces, together with the embedded goose migrations that create the
// resources and dead_letters tables.
//
// Find-or-create relies on the UNIQUE (kind, resource_id, language)
// constraint and INSERT ... ON CONFLICT DO NOTHING rather than any
// application-side locking.
package postgres
