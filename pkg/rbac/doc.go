// Package rbac implements group-based access control for Gatehouse.
//
// # Overview
//
// Access is granted through groups. A group collects users (members) and
// grants (permissions), and a user's effective permission set is the union of
// the grants of every group they belong to. Permissions themselves form a
// closed catalog defined in pkg/catalog; grants referencing strings outside
// the catalog never confer access.
//
// # Model
//
//   - Group: named collection with a unique slug. System groups are created
//     at bootstrap and cannot be deleted; their slugs never change.
//   - Grant: a permission held by a group, either global or scoped to one
//     resource (resource_type + resource_id).
//   - Check: the question "may user U do P", optionally "on resource T/R".
//
// # Built-In Groups
//
// Bootstrap creates two system groups when the admin group is absent:
//
//	admin - holds every catalog permission; members pass all checks
//	user  - the default group; holds the baseline read permissions
//
// New users are placed in the default group via AssignDefaultGroupToUser.
//
// # Checking Permissions
//
//	checker := rbac.NewChecker(store, permCache, logger, metrics)
//	allowed, err := checker.Allowed(ctx, rbac.Check{
//		UserID:     user.ID,
//		Permission: catalog.PostsPublish,
//	})
//
// Global checks are answered from the permission cache when possible; on a
// miss the set is computed from the store and cached for the configured TTL.
// Resource-scoped checks skip the cache entirely so a freshly granted
// resource permission is honored immediately. A global grant satisfies a
// scoped check for the same permission.
//
// Cache failures fall back to the store (checks still succeed), while store
// failures deny. Unknown permissions deny without error.
//
// # Administration
//
// Service carries the mutations and their invariants:
//
//	svc := rbac.NewService(db, store, permCache, logger, metrics)
//	group, err := svc.CreateGroup(ctx, rbac.CreateGroupInput{
//		Name: "Editors",
//		Slug: "editors",
//	})
//	err = svc.SetPermissions(ctx, group.ID, specs)  // replaces the full set
//	err = svc.AddMembers(ctx, group.ID, []int64{42})
//
// SetPermissions replaces a group's entire grant set rather than patching it.
// Deleting a system group returns ErrSystemGroup; removing the admin group's
// last member returns ErrLastAdmin, enforced inside a transaction so two
// concurrent removals cannot race past the guard.
//
// Every mutation that can change a user's effective permissions invalidates
// the affected cache entries after commit. Invalidation failures are logged
// rather than surfaced; the cache TTL bounds the resulting staleness.
//
// # HTTP
//
// Handlers exposes the service under /rbac, and PermissionMiddleware guards
// arbitrary routes:
//
//	pm := rbac.NewPermissionMiddleware(checker, resolvePrincipal)
//	router.Handle("/posts",
//		pm.RequirePermission(catalog.PostsCreate)(createPostHandler),
//	).Methods("POST")
//
// # Schema
//
// Three tables: groups, group_members and group_grants, with grants and
// memberships cascading on group deletion. RunMigrations applies the schema
// and records applied versions in rbac_migrations.
package rbac
