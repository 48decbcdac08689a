package rbac

import (
	"regexp"
	"time"

	"github.com/gatehouse/gatehouse/pkg/catalog"
)

// Well-known group slugs created at bootstrap.
const (
	// SlugAdmin is the administrator group. Members bypass grant
	// evaluation entirely.
	SlugAdmin = "admin"

	// SlugUser is the default group new users are assigned to.
	SlugUser = "user"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a well-formed group slug: lowercase
// alphanumeric runs separated by single hyphens.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Group is a named collection of users sharing a set of permission grants.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grant is a single permission held by a group. A grant with no resource
// fields is global; one with both resource fields applies to that resource
// only.
type Grant struct {
	ID           int64              `json:"id"`
	GroupID      int64              `json:"group_id"`
	Permission   catalog.Permission `json:"permission"`
	ResourceType *string            `json:"resource_type,omitempty"`
	ResourceID   *string            `json:"resource_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Global reports whether the grant applies everywhere rather than to a
// single resource.
func (g Grant) Global() bool {
	return g.ResourceType == nil
}

// GrantSpec describes a grant to write. Used by SetPermissions, which
// replaces a group's full grant set.
type GrantSpec struct {
	Permission   catalog.Permission `json:"permission"`
	ResourceType *string            `json:"resource_type,omitempty"`
	ResourceID   *string            `json:"resource_id,omitempty"`
}

// Global reports whether this describes a global grant.
func (g GrantSpec) Global() bool {
	return g.ResourceType == nil
}

// GroupPatch is a partial group update. Nil fields are left unchanged.
type GroupPatch struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	IsDefault   *bool   `json:"is_default,omitempty"`
}

// Check is a single authorization question: does this user hold this
// permission, optionally narrowed to one resource?
type Check struct {
	UserID       int64              `json:"user_id"`
	Permission   catalog.Permission `json:"permission"`
	ResourceType *string            `json:"resource_type,omitempty"`
	ResourceID   *string            `json:"resource_id,omitempty"`
}

// Scoped reports whether the check targets a specific resource.
func (c Check) Scoped() bool {
	return c.ResourceType != nil && c.ResourceID != nil
}
