package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/pkg/catalog"
)

// Store handles group and grant persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for transactional callers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateGroup inserts a new group and fills in its ID and timestamps.
func (s *Store) CreateGroup(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO groups (name, slug, description, is_system, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		group.Name,
		group.Slug,
		group.Description,
		group.IsSystem,
		group.IsDefault,
		now,
		now,
	).Scan(&group.ID)

	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	group.CreatedAt = now
	group.UpdatedAt = now
	return nil
}

// GetGroup retrieves a group by ID
func (s *Store) GetGroup(ctx context.Context, groupID int64) (*Group, error) {
	query := `
		SELECT id, name, slug, description, is_system, is_default, created_at, updated_at
		FROM groups
		WHERE id = $1
	`
	return s.scanGroupRow(s.db.QueryRowContext(ctx, query, groupID))
}

// GetGroupBySlug retrieves a group by slug
func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*Group, error) {
	query := `
		SELECT id, name, slug, description, is_system, is_default, created_at, updated_at
		FROM groups
		WHERE slug = $1
	`
	return s.scanGroupRow(s.db.QueryRowContext(ctx, query, slug))
}

// GetDefaultGroup retrieves the group marked as default, or ErrNoDefaultGroup.
func (s *Store) GetDefaultGroup(ctx context.Context) (*Group, error) {
	query := `
		SELECT id, name, slug, description, is_system, is_default, created_at, updated_at
		FROM groups
		WHERE is_default = TRUE
		ORDER BY id ASC
		LIMIT 1
	`

	group, err := s.scanGroupRow(s.db.QueryRowContext(ctx, query))
	if err == ErrGroupNotFound {
		return nil, ErrNoDefaultGroup
	}
	return group, err
}

// ListGroups lists all groups ordered by name
func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	query := `
		SELECT id, name, slug, description, is_system, is_default, created_at, updated_at
		FROM groups
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Slug,
			&group.Description,
			&group.IsSystem,
			&group.IsDefault,
			&group.CreatedAt,
			&group.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// UpdateGroup persists name, slug, description and default flag changes.
func (s *Store) UpdateGroup(ctx context.Context, group *Group) error {
	query := `
		UPDATE groups
		SET name = $1, slug = $2, description = $3, is_default = $4, updated_at = $5
		WHERE id = $6
	`

	group.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		group.Name,
		group.Slug,
		group.Description,
		group.IsDefault,
		group.UpdatedAt,
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// DeleteGroup removes a group. Membership rows and grants go with it via
// ON DELETE CASCADE.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// SlugExists reports whether a slug is taken by a group other than excludeID.
func (s *Store) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM groups WHERE slug = $1 AND id <> $2`,
		slug, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

// AddMembers adds users to a group. Existing memberships are skipped.
func (s *Store) AddMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	query := `
		INSERT INTO group_members (group_id, user_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`

	now := time.Now()
	for _, userID := range userIDs {
		if _, err := s.db.ExecContext(ctx, query, groupID, userID, now); err != nil {
			return fmt.Errorf("failed to add member %d: %w", userID, err)
		}
	}
	return nil
}

// RemoveMembers removes users from a group. Absent memberships are ignored.
func (s *Store) RemoveMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	for _, userID := range userIDs {
		if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
			return fmt.Errorf("failed to remove member %d: %w", userID, err)
		}
	}
	return nil
}

// ListMembers returns the user IDs belonging to a group.
func (s *Store) ListMembers(ctx context.Context, groupID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM group_members
		WHERE group_id = $1
		ORDER BY user_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, rows.Err()
}

// ListUserGroups returns the groups a user belongs to.
func (s *Store) ListUserGroups(ctx context.Context, userID int64) ([]Group, error) {
	query := `
		SELECT g.id, g.name, g.slug, g.description, g.is_system, g.is_default, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Slug,
			&group.Description,
			&group.IsSystem,
			&group.IsDefault,
			&group.CreatedAt,
			&group.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// UserInGroupWithSlug reports whether the user belongs to the group with the
// given slug.
func (s *Store) UserInGroupWithSlug(ctx context.Context, userID int64, slug string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND g.slug = $2
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, slug).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return count > 0, nil
}

// ReplaceGrants atomically replaces a group's full grant set.
func (s *Store) ReplaceGrants(ctx context.Context, groupID int64, specs []GrantSpec) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_grants WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("failed to clear grants: %w", err)
	}

	insert := `
		INSERT INTO group_grants (group_id, permission, resource_type, resource_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := time.Now()
	for _, spec := range specs {
		if _, err := tx.ExecContext(ctx, insert,
			groupID,
			string(spec.Permission),
			spec.ResourceType,
			spec.ResourceID,
			now,
		); err != nil {
			return fmt.Errorf("failed to insert grant %s: %w", spec.Permission, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grants: %w", err)
	}
	return nil
}

// ListGrants returns a group's grants, global grants first.
func (s *Store) ListGrants(ctx context.Context, groupID int64) ([]Grant, error) {
	query := `
		SELECT id, group_id, permission, resource_type, resource_id, created_at
		FROM group_grants
		WHERE group_id = $1
		ORDER BY resource_type NULLS FIRST, permission ASC
	`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
	}

	return grants, rows.Err()
}

// UserGlobalPermissions returns the distinct global permissions the user
// holds through group membership.
func (s *Store) UserGlobalPermissions(ctx context.Context, userID int64) ([]catalog.Permission, error) {
	query := `
		SELECT DISTINCT gg.permission
		FROM group_grants gg
		JOIN group_members gm ON gm.group_id = gg.group_id
		WHERE gm.user_id = $1 AND gg.resource_type IS NULL
		ORDER BY gg.permission ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	defer rows.Close()

	var perms []catalog.Permission
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, catalog.Permission(perm))
	}

	return perms, rows.Err()
}

// UserHasResourcePermission reports whether the user holds the permission for
// a specific resource, through either a matching resource-scoped grant or a
// global grant.
func (s *Store) UserHasResourcePermission(ctx context.Context, userID int64, perm catalog.Permission, resourceType, resourceID string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM group_grants gg
		JOIN group_members gm ON gm.group_id = gg.group_id
		WHERE gm.user_id = $1
		  AND gg.permission = $2
		  AND (gg.resource_type IS NULL
		       OR (gg.resource_type = $3 AND gg.resource_id = $4))
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, string(perm), resourceType, resourceID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check resource permission: %w", err)
	}
	return count > 0, nil
}

// PruneUnknownGrants deletes grants whose permission is not in the known set
// and returns the number removed.
func (s *Store) PruneUnknownGrants(ctx context.Context, known []catalog.Permission) (int64, error) {
	if len(known) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(known))
	args := make([]interface{}, len(known))
	for i, perm := range known {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(perm)
	}

	query := fmt.Sprintf(
		`DELETE FROM group_grants WHERE permission NOT IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune grants: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned grants: %w", err)
	}
	return n, nil
}

func (s *Store) scanGroupRow(row *sql.Row) (*Group, error) {
	var group Group
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Slug,
		&group.Description,
		&group.IsSystem,
		&group.IsDefault,
		&group.CreatedAt,
		&group.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// scanGrant scans a grant from a database row
func scanGrant(scanner interface {
	Scan(dest ...interface{}) error
}) (*Grant, error) {
	var grant Grant
	var perm string
	var resourceType, resourceID sql.NullString

	err := scanner.Scan(
		&grant.ID,
		&grant.GroupID,
		&perm,
		&resourceType,
		&resourceID,
		&grant.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan grant: %w", err)
	}

	grant.Permission = catalog.Permission(perm)
	if resourceType.Valid {
		rt := resourceType.String
		grant.ResourceType = &rt
	}
	if resourceID.Valid {
		rid := resourceID.String
		grant.ResourceID = &rid
	}

	return &grant, nil
}
