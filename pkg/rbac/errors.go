package rbac

import (
	"errors"
	"fmt"

	"github.com/gatehouse/gatehouse/pkg/catalog"
)

// Sentinel errors for invariant violations and lookups. Callers distinguish
// them with errors.Is.
var (
	// ErrGroupNotFound is returned when no group matches the given ID or slug.
	ErrGroupNotFound = errors.New("group not found")

	// ErrSystemGroup is returned when a mutation would delete a system group.
	ErrSystemGroup = errors.New("system group cannot be deleted")

	// ErrLastAdmin is returned when a removal would leave the administrator
	// group empty.
	ErrLastAdmin = errors.New("cannot remove the last administrator")

	// ErrSlugTaken is returned when a create or update collides with an
	// existing slug.
	ErrSlugTaken = errors.New("slug already in use")

	// ErrNoDefaultGroup is returned when no group is marked as default.
	ErrNoDefaultGroup = errors.New("no default group configured")
)

// ValidationError reports malformed caller input on a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnknownPermissionError reports a permission string not present in the
// catalog.
type UnknownPermissionError struct {
	Permission catalog.Permission
}

func (e *UnknownPermissionError) Error() string {
	return fmt.Sprintf("unknown permission: %s", e.Permission)
}

// IsNotFound reports whether err is a lookup failure rather than an
// infrastructure error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound) || errors.Is(err, ErrNoDefaultGroup)
}
