package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/catalog"
	"github.com/gatehouse/gatehouse/pkg/observability"
)

// DefaultCacheTTL bounds how stale a cached permission set can get when an
// invalidation is missed.
const DefaultCacheTTL = time.Hour

// permEntry is the cached shape of a user's global permission set. All is set
// for admins, whose checks succeed without consulting the permission list.
type permEntry struct {
	All   bool     `json:"all"`
	Perms []string `json:"perms"`
}

// PermissionCache stores computed per-user global permission sets in a cache
// backend. Entries expire after ttl and are explicitly invalidated on any
// mutation that could change a user's permissions.
type PermissionCache struct {
	store   cache.Store
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewPermissionCache creates a permission cache over the given backend.
func NewPermissionCache(store cache.Store, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PermissionCache{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func permKey(userID int64) string {
	return fmt.Sprintf("rbac:user:%d:perms", userID)
}

// Get returns the cached entry for a user, or cache.ErrMiss. A corrupt entry
// is deleted and reported as a miss so the caller recomputes it.
func (c *PermissionCache) Get(ctx context.Context, userID int64) (*permEntry, error) {
	key := permKey(userID)

	data, err := c.store.Get(ctx, key)
	if err == cache.ErrMiss {
		c.metrics.RecordCacheMiss("permissions")
		return nil, cache.ErrMiss
	}
	if err != nil {
		c.metrics.RecordCacheError("permissions", "get")
		return nil, err
	}

	var entry permEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithField("user_id", userID).WithError(err).Warn("dropping corrupt cached permission entry")
		if delErr := c.store.Delete(ctx, key); delErr != nil {
			c.metrics.RecordCacheError("permissions", "delete")
		}
		c.metrics.RecordCacheMiss("permissions")
		return nil, cache.ErrMiss
	}

	c.metrics.RecordCacheHit("permissions")
	return &entry, nil
}

// Set stores a user's computed permission set.
func (c *PermissionCache) Set(ctx context.Context, userID int64, admin bool, perms []catalog.Permission) error {
	entry := permEntry{All: admin, Perms: make([]string, 0, len(perms))}
	for _, perm := range perms {
		entry.Perms = append(entry.Perms, string(perm))
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal permission entry: %w", err)
	}

	if err := c.store.Set(ctx, permKey(userID), data, c.ttl); err != nil {
		c.metrics.RecordCacheError("permissions", "set")
		return err
	}
	return nil
}

// Invalidate drops the cached entries for the given users.
func (c *PermissionCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, permKey(userID))
	}

	if err := c.store.Delete(ctx, keys...); err != nil {
		c.metrics.RecordCacheError("permissions", "delete")
		return err
	}
	c.metrics.RecordInvalidation(len(userIDs))
	return nil
}

// Has reports whether the entry covers the permission.
func (e *permEntry) Has(perm catalog.Permission) bool {
	if e.All {
		return true
	}
	want := string(perm)
	for _, p := range e.Perms {
		if p == want {
			return true
		}
	}
	return false
}
