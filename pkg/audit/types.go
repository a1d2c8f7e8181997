package audit

import "time"

// EscalationEvent records one upgrade of a tenant-scoped handle to an
// unrestricted root handle.
type EscalationEvent struct {
	// OrgID is the tenant the caller was scoped to before escalating.
	// Empty when an already-unrestricted handle escalated again.
	OrgID string `json:"org_id,omitempty"`

	// Backend names the storage backend ("postgres" or "sqlite").
	Backend string `json:"backend"`

	// Reason is the caller-supplied justification. Never empty; handles
	// reject escalation without one.
	Reason string `json:"reason"`

	// OccurredAt is when the escalation happened.
	OccurredAt time.Time `json:"occurred_at"`
}
