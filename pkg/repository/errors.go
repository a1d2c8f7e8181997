package repository

import (
	"errors"
	"fmt"
)

// Normalized error kinds. Callers match with errors.Is and never branch on
// backend-specific error text.
var (
	// ErrDuplicateKey reports a primary-key or uniqueness conflict.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrForeignKey reports an operation against a parent that does not
	// exist, e.g. creating a role under a nonexistent organization.
	ErrForeignKey = errors.New("referenced entity does not exist")

	// ErrNoOrgContext reports a tenant-scoped operation called without an
	// organization. This is a programming error at the call site and
	// fails loudly instead of silently widening scope.
	ErrNoOrgContext = errors.New("operation requires an organization context")

	// ErrRootRequired reports a cross-tenant operation attempted on a
	// tenant-scoped handle. Callers escalate with UpgradeToRoot first.
	ErrRootRequired = errors.New("operation requires an unrestricted context")
)

// DuplicateKey wraps ErrDuplicateKey with the entity name, yielding the
// uniform "duplicate key: <entity> already exists" message.
func DuplicateKey(entity string) error {
	return fmt.Errorf("%w: %s already exists", ErrDuplicateKey, entity)
}

// ForeignKey wraps ErrForeignKey with the entity name.
func ForeignKey(entity string) error {
	return fmt.Errorf("%w: %s references a missing parent", ErrForeignKey, entity)
}
