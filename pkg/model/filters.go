package model

import "encoding/json"

// SortOrder controls list ordering direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Page holds limit/offset pagination and sort direction for list operations.
// A zero Limit means no limit.
type Page struct {
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Order  SortOrder `json:"order"`
}

// OrderOrDefault returns the page's sort order, defaulting to ascending.
func (p Page) OrderOrDefault() SortOrder {
	if p.Order == SortDesc {
		return SortDesc
	}
	return SortAsc
}

// PropertyFilter selects parents holding a property with the given name and
// exact JSON value. When multiple filters are supplied, ALL must match.
type PropertyFilter struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// OrganizationFilter narrows organization listings.
type OrganizationFilter struct {
	Name       *string          `json:"name,omitempty"`
	Properties []PropertyFilter `json:"properties,omitempty"`
}

// UserFilter narrows user listings within an organization.
type UserFilter struct {
	IdentityProvider       *string          `json:"identity_provider,omitempty"`
	IdentityProviderUserID *string          `json:"identity_provider_user_id,omitempty"`
	Properties             []PropertyFilter `json:"properties,omitempty"`
}

// RoleFilter narrows role listings within an organization.
type RoleFilter struct {
	Name       *string          `json:"name,omitempty"`
	Properties []PropertyFilter `json:"properties,omitempty"`
}

// ResourceFilter narrows resource listings within an organization.
type ResourceFilter struct {
	Name *string `json:"name,omitempty"`
}

// OrganizationUpdate carries the fields of a partial organization update.
// Nil fields are left unchanged.
type OrganizationUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UserUpdate carries the fields of a partial user update.
type UserUpdate struct {
	IdentityProvider       *string `json:"identity_provider,omitempty"`
	IdentityProviderUserID *string `json:"identity_provider_user_id,omitempty"`
}

// RoleUpdate carries the fields of a partial role update.
type RoleUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ResourceUpdate carries the fields of a partial resource update.
type ResourceUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
