package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/pkg/catalog"
	"github.com/gatehouse/gatehouse/pkg/observability"
)

// Service implements group administration. Mutations that could change a
// user's effective permissions invalidate the affected cache entries after
// the database commit; invalidation failures are logged, never surfaced, and
// the TTL bounds the resulting staleness.
type Service struct {
	db       *sql.DB
	store    *Store
	cache    *PermissionCache
	logger   *observability.Logger
	metrics  *observability.Metrics
	rowLocks bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithoutRowLocks disables SELECT ... FOR UPDATE in invariant checks, for
// databases that do not support row locking.
func WithoutRowLocks() ServiceOption {
	return func(s *Service) {
		s.rowLocks = false
	}
}

// NewService creates a group administration service.
func NewService(db *sql.DB, store *Store, permCache *PermissionCache, logger *observability.Logger, metrics *observability.Metrics, opts ...ServiceOption) *Service {
	svc := &Service{
		db:       db,
		store:    store,
		cache:    permCache,
		logger:   logger,
		metrics:  metrics,
		rowLocks: true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateGroupInput carries the fields for a new group.
type CreateGroupInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

// CreateGroup creates a non-system group. Marking it default clears the flag
// on any other group.
func (s *Service) CreateGroup(ctx context.Context, input CreateGroupInput) (group *Group, err error) {
	defer func() { s.metrics.RecordGroupMutation("create_group", err) }()

	if input.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if !ValidSlug(input.Slug) {
		return nil, &ValidationError{Field: "slug", Message: "slug must be lowercase letters, digits and hyphens"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	taken, err := slugTakenTx(ctx, tx, input.Slug, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	if input.IsDefault {
		if err = clearDefaultsTx(ctx, tx, 0); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	group = &Group{
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		IsDefault:   input.IsDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO groups (name, slug, description, is_system, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, group.Name, group.Slug, group.Description, false, group.IsDefault, now, now).Scan(&group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"group_id": group.ID,
		"slug":     group.Slug,
	}).Info("group created")
	return group, nil
}

// UpdateGroup applies a partial update. Slug changes on system groups are
// ignored so built-in groups stay addressable by their well-known slugs.
func (s *Service) UpdateGroup(ctx context.Context, groupID int64, patch GroupPatch) (group *Group, err error) {
	defer func() { s.metrics.RecordGroupMutation("update_group", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	group, err = getGroupTx(ctx, tx, groupID, s.rowLocks)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, &ValidationError{Field: "name", Message: "name is required"}
		}
		group.Name = *patch.Name
	}
	if patch.Slug != nil && !group.IsSystem {
		if !ValidSlug(*patch.Slug) {
			return nil, &ValidationError{Field: "slug", Message: "slug must be lowercase letters, digits and hyphens"}
		}
		taken, err := slugTakenTx(ctx, tx, *patch.Slug, groupID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSlugTaken
		}
		group.Slug = *patch.Slug
	}
	if patch.Description != nil {
		group.Description = *patch.Description
	}
	if patch.IsDefault != nil {
		if *patch.IsDefault && !group.IsDefault {
			if err = clearDefaultsTx(ctx, tx, groupID); err != nil {
				return nil, err
			}
		}
		group.IsDefault = *patch.IsDefault
	}

	group.UpdatedAt = time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE groups
		SET name = $1, slug = $2, description = $3, is_default = $4, updated_at = $5
		WHERE id = $6
	`, group.Name, group.Slug, group.Description, group.IsDefault, group.UpdatedAt, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group update: %w", err)
	}
	return group, nil
}

// DeleteGroup deletes a non-system group along with its memberships and
// grants, then invalidates the former members' cached permissions. The
// member list is captured inside the deleting transaction so a user added
// while the delete is in flight still gets invalidated.
func (s *Service) DeleteGroup(ctx context.Context, groupID int64) (err error) {
	defer func() { s.metrics.RecordGroupMutation("delete_group", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := getGroupTx(ctx, tx, groupID, s.rowLocks)
	if err != nil {
		return err
	}
	if group.IsSystem {
		return ErrSystemGroup
	}

	members, err := listMembersTx(ctx, tx, groupID)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}

	s.invalidate(ctx, members...)
	s.logger.WithFields(map[string]interface{}{
		"group_id": groupID,
		"slug":     group.Slug,
	}).Info("group deleted")
	return nil
}

// AddMembers adds users to a group. Already-present users are skipped.
func (s *Service) AddMembers(ctx context.Context, groupID int64, userIDs []int64) (err error) {
	defer func() { s.metrics.RecordGroupMutation("add_members", err) }()

	if len(userIDs) == 0 {
		return &ValidationError{Field: "user_ids", Message: "at least one user ID is required"}
	}

	if _, err = s.store.GetGroup(ctx, groupID); err != nil {
		return err
	}

	if err = s.store.AddMembers(ctx, groupID, userIDs); err != nil {
		return err
	}

	s.invalidate(ctx, userIDs...)
	return nil
}

// RemoveMembers removes users from a group. Removing the administrator
// group's last member is rejected so the deployment can never lock itself
// out.
func (s *Service) RemoveMembers(ctx context.Context, groupID int64, userIDs []int64) (err error) {
	defer func() { s.metrics.RecordGroupMutation("remove_members", err) }()

	if len(userIDs) == 0 {
		return &ValidationError{Field: "user_ids", Message: "at least one user ID is required"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := getGroupTx(ctx, tx, groupID, s.rowLocks)
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`,
			groupID, userID,
		); err != nil {
			return fmt.Errorf("failed to remove member %d: %w", userID, err)
		}
	}

	if group.Slug == SlugAdmin {
		var remaining int
		if err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM group_members WHERE group_id = $1`,
			groupID,
		).Scan(&remaining); err != nil {
			return fmt.Errorf("failed to count administrators: %w", err)
		}
		if remaining == 0 {
			return ErrLastAdmin
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member removal: %w", err)
	}

	s.invalidate(ctx, userIDs...)
	return nil
}

// SetPermissions replaces the group's entire grant set. The previous set is
// discarded, so calling with the same specs twice is a no-op.
func (s *Service) SetPermissions(ctx context.Context, groupID int64, specs []GrantSpec) (err error) {
	defer func() { s.metrics.RecordGroupMutation("set_permissions", err) }()

	for _, spec := range specs {
		if !catalog.Known(spec.Permission) {
			return &UnknownPermissionError{Permission: spec.Permission}
		}
		if (spec.ResourceType == nil) != (spec.ResourceID == nil) {
			return &ValidationError{Field: "grants", Message: "resource_type and resource_id must be set together"}
		}
	}

	if _, err = s.store.GetGroup(ctx, groupID); err != nil {
		return err
	}

	if err = s.store.ReplaceGrants(ctx, groupID, specs); err != nil {
		return err
	}

	members, listErr := s.store.ListMembers(ctx, groupID)
	if listErr != nil {
		s.logger.WithField("group_id", groupID).WithError(listErr).Warn("failed to list members for cache invalidation")
		return nil
	}
	s.invalidate(ctx, members...)
	return nil
}

// GetDefaultGroup returns the group new users are placed in.
func (s *Service) GetDefaultGroup(ctx context.Context) (*Group, error) {
	return s.store.GetDefaultGroup(ctx)
}

// AssignDefaultGroupToUser adds a user to the default group. Used by signup
// flows so new users land with baseline permissions.
func (s *Service) AssignDefaultGroupToUser(ctx context.Context, userID int64) (err error) {
	defer func() { s.metrics.RecordGroupMutation("assign_default_group", err) }()

	group, err := s.store.GetDefaultGroup(ctx)
	if err != nil {
		return err
	}

	if err = s.store.AddMembers(ctx, group.ID, []int64{userID}); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

// invalidate drops cached permission sets after a committed mutation. Cache
// errors are logged only; the TTL caps staleness.
func (s *Service) invalidate(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.logger.WithField("user_count", len(userIDs)).WithError(err).Warn("failed to invalidate permission cache")
	}
}

func getGroupTx(ctx context.Context, tx *sql.Tx, groupID int64, lock bool) (*Group, error) {
	query := `
		SELECT id, name, slug, description, is_system, is_default, created_at, updated_at
		FROM groups
		WHERE id = $1
	`
	if lock {
		query += " FOR UPDATE"
	}

	var group Group
	err := tx.QueryRowContext(ctx, query, groupID).Scan(
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

func listMembersTx(ctx context.Context, tx *sql.Tx, groupID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read members: %w", err)
	}
	return userIDs, nil
}

func slugTakenTx(ctx context.Context, tx *sql.Tx, slug string, excludeID int64) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM groups WHERE slug = $1 AND id <> $2`,
		slug, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

func clearDefaultsTx(ctx context.Context, tx *sql.Tx, excludeID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE groups SET is_default = FALSE WHERE is_default = TRUE AND id <> $1`,
		excludeID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear default flag: %w", err)
	}
	return nil
}
