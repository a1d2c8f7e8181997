package model

import (
	"encoding/json"
	"time"
)

// Organization is the top-level tenant boundary. Organizations are globally
// visible; every other entity belongs to exactly one organization.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User represents an identity inside an organization. The identity-provider
// pair identifies the same person at the IdP; it is not required to be unique
// across organizations.
type User struct {
	ID                     string    `json:"id"`
	OrgID                  string    `json:"org_id"`
	IdentityProvider       string    `json:"identity_provider"`
	IdentityProviderUserID string    `json:"identity_provider_user_id"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Role is a named set of grants inside an organization.
type Role struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Resource is an addressable object inside an organization. Its ID is a
// hierarchical path string and may end with a wildcard marker ("*") to denote
// a prefix grant target, e.g. "/api/users/*".
type Resource struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Property is an arbitrary named JSON value attached to an organization,
// user, or role. Name is unique per parent; re-setting overwrites value,
// hidden flag, and created_at. Hidden suppresses display by consumers, it is
// not a security boundary.
type Property struct {
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	Hidden    bool            `json:"hidden"`
	CreatedAt time.Time       `json:"created_at"`
}

// UserRole is a many-to-many assignment of a role to a user.
type UserRole struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	OrgID     string    `json:"org_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserPermission is a grant made directly to a user. ResourceID is a pattern
// and intentionally has no foreign key to the resources table; it may denote
// a subtree ("/india/*") that no stored resource row corresponds to.
type UserPermission struct {
	UserID     string    `json:"user_id"`
	OrgID      string    `json:"org_id"`
	ResourceID string    `json:"resource_id"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}

// RolePermission is a grant inherited by every user holding the role.
type RolePermission struct {
	RoleID     string    `json:"role_id"`
	OrgID      string    `json:"org_id"`
	ResourceID string    `json:"resource_id"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}

// PermissionSource identifies how an effective permission was obtained.
type PermissionSource string

const (
	SourceUser PermissionSource = "user"
	SourceRole PermissionSource = "role"
)

// EffectivePermission is a permission derived at query time from either a
// direct user grant or a role-inherited grant. It is never persisted.
type EffectivePermission struct {
	ResourceID string           `json:"resource_id"`
	Action     string           `json:"action"`
	Source     PermissionSource `json:"source"`
	SourceID   string           `json:"source_id"`
	CreatedAt  time.Time        `json:"created_at"`
}
