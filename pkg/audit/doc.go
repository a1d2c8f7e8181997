// Package audit records privilege escalations.
//
// Every UpgradeToRoot call on a tenant handle produces an EscalationEvent
// carrying the caller-supplied reason. Events are always written to the
// structured log; when a database connection is supplied they are persisted
// to the audit_escalations table as well, so cross-tenant administrative
// access stays reviewable after process restarts.
package audit
