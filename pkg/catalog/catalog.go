// Package catalog defines the closed set of permission identifiers the
// access-control engine understands. The catalog is code-defined: adding a
// permission is a code change, never a migration. Grant rows referencing a
// permission that has since been removed are inert (they never match a known
// permission at check time) and are pruned by the maintenance job.
package catalog

// Permission is a single permission identifier, e.g. "posts.publish".
// Values outside the catalog are a caller bug, not a deny: every entry point
// validates against Known before evaluating.
type Permission string

// Category groups permissions for display purposes.
type Category string

const (
	CategoryUsers    Category = "users"
	CategoryGroups   Category = "groups"
	CategoryContent  Category = "content"
	CategorySettings Category = "settings"
	CategoryBackups  Category = "backups"
	CategoryLogs     Category = "logs"
)

// All defined permissions.
const (
	UsersView    Permission = "users.view"
	UsersManage  Permission = "users.manage"
	GroupsView   Permission = "groups.view"
	GroupsManage Permission = "groups.manage"
	PostsView    Permission = "posts.view"
	PostsCreate  Permission = "posts.create"
	PostsPublish Permission = "posts.publish"
	PostsDelete  Permission = "posts.delete"
	SettingsView Permission = "settings.view"
	SettingsEdit Permission = "settings.edit"
	BackupsView  Permission = "backups.view"
	BackupsRun   Permission = "backups.run"
	LogsView     Permission = "logs.view"
	LogsPurge    Permission = "logs.purge"
)

// Definition describes a catalog entry for permission-selection UIs.
type Definition struct {
	Permission  Permission `json:"permission"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
}

var definitions = []Definition{
	{UsersView, CategoryUsers, "View user accounts"},
	{UsersManage, CategoryUsers, "Create, update and delete user accounts"},
	{GroupsView, CategoryGroups, "View groups and their members"},
	{GroupsManage, CategoryGroups, "Manage groups, membership and grants"},
	{PostsView, CategoryContent, "View posts"},
	{PostsCreate, CategoryContent, "Create and edit draft posts"},
	{PostsPublish, CategoryContent, "Publish posts"},
	{PostsDelete, CategoryContent, "Delete posts"},
	{SettingsView, CategorySettings, "View application settings"},
	{SettingsEdit, CategorySettings, "Change application settings"},
	{BackupsView, CategoryBackups, "View backups"},
	{BackupsRun, CategoryBackups, "Run and restore backups"},
	{LogsView, CategoryLogs, "View access logs"},
	{LogsPurge, CategoryLogs, "Purge access logs"},
}

var known = func() map[Permission]Definition {
	m := make(map[Permission]Definition, len(definitions))
	for _, d := range definitions {
		m[d.Permission] = d
	}
	return m
}()

// All returns every permission in the catalog, in definition order.
func All() []Permission {
	out := make([]Permission, len(definitions))
	for i, d := range definitions {
		out[i] = d.Permission
	}
	return out
}

// Definitions returns the full catalog with categories and descriptions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Categories returns the distinct categories in definition order.
func Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, d := range definitions {
		if !seen[d.Category] {
			seen[d.Category] = true
			out = append(out, d.Category)
		}
	}
	return out
}

// ByCategory returns the permissions belonging to a category.
func ByCategory(c Category) []Permission {
	var out []Permission
	for _, d := range definitions {
		if d.Category == c {
			out = append(out, d.Permission)
		}
	}
	return out
}

// Known reports whether p is a member of the catalog.
func Known(p Permission) bool {
	_, ok := known[p]
	return ok
}

// Baseline returns the minimal read-only set granted to the default group.
func Baseline() []Permission {
	return []Permission{UsersView, PostsView}
}
