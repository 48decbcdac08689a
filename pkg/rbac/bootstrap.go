package rbac

import (
	"context"
	"fmt"

	"github.com/gatehouse/gatehouse/pkg/catalog"
	"github.com/gatehouse/gatehouse/pkg/observability"
)

// EnsureDefaultGroups creates the built-in administrator and member groups if
// they do not exist yet. Keyed on the admin slug, so it is safe to run on
// every startup: once the admin group exists nothing is touched, preserving
// any operator changes to the built-in groups.
func EnsureDefaultGroups(ctx context.Context, store *Store, logger *observability.Logger) error {
	if _, err := store.GetGroupBySlug(ctx, SlugAdmin); err == nil {
		logger.Debug("default groups already present")
		return nil
	} else if err != ErrGroupNotFound {
		return fmt.Errorf("failed to check for admin group: %w", err)
	}

	admin := &Group{
		Name:        "Administrators",
		Slug:        SlugAdmin,
		Description: "Full access to every permission",
		IsSystem:    true,
	}
	if err := store.CreateGroup(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin group: %w", err)
	}
	if err := store.ReplaceGrants(ctx, admin.ID, globalSpecs(catalog.All())); err != nil {
		return fmt.Errorf("failed to grant admin permissions: %w", err)
	}

	users := &Group{
		Name:        "Users",
		Slug:        SlugUser,
		Description: "Baseline access for new users",
		IsSystem:    true,
		IsDefault:   true,
	}
	if err := store.CreateGroup(ctx, users); err != nil {
		return fmt.Errorf("failed to create user group: %w", err)
	}
	if err := store.ReplaceGrants(ctx, users.ID, globalSpecs(catalog.Baseline())); err != nil {
		return fmt.Errorf("failed to grant baseline permissions: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"admin_group_id": admin.ID,
		"user_group_id":  users.ID,
	}).Info("default groups created")
	return nil
}

func globalSpecs(perms []catalog.Permission) []GrantSpec {
	specs := make([]GrantSpec, 0, len(perms))
	for _, perm := range perms {
		specs = append(specs, GrantSpec{Permission: perm})
	}
	return specs
}
