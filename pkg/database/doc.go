// Package database defines the tenant-isolation contract shared by both
// storage backends.
//
// A TenantDB is a handle over a pooled SQL connection that is either scoped
// to a single organization or unrestricted ("root"). The Postgres backend
// enforces the scope inside the database with row-security policies keyed by
// a session variable; the embedded SQLite backend relies on every repository
// statement carrying an explicit org_id predicate. Repositories are written
// against this contract and never know which backend is active.
package database
