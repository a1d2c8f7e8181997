// Package postgres implements the policy-enforced storage backend.
//
// Tenant isolation is delegated to the database: every tenant-scoped table
// carries a row-security policy keyed on the gatehouse.current_org_id session
// variable, and tenant handles connect as a restricted principal that cannot
// see or modify rows outside that setting. Unrestricted (root) handles
// connect as a separate principal exempt from the policies. The
// organizations table itself is globally visible and carries no policy.
//
// Connection pools are one per principal, created lazily and shared for the
// process lifetime; a tenant handle checks one connection out on first use
// and pins it until Close so the session variable and any open transaction
// stay on that connection.
package postgres
