// Package sqlite implements the embedded explicit-filtering storage backend.
//
// SQLite has no row security and no per-session principals, so nothing here
// enforces tenant isolation at the database level. Isolation rests entirely
// on repository discipline: every statement a repository generates against a
// tenant-scoped table includes an org_id predicate. The handle type exists
// to satisfy the database.TenantDB contract and to carry the scope those
// repositories filter by.
package sqlite
