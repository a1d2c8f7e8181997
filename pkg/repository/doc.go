// Package repository defines the storage contracts for every entity family.
//
// Each interface is implemented once per backend (postgres, sqlite). Every
// operation on a tenant-scoped entity takes the orgID explicitly so call
// sites read identically regardless of which backend enforces isolation.
// Expected failure modes come back as values: a missing entity on a read
// path is (nil, nil), constraint violations are normalized to
// ErrDuplicateKey / ErrForeignKey regardless of which driver raised them,
// and revoking or deleting something absent reports false without error.
package repository
