package rbac

import (
	"context"
	"time"

	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/catalog"
	"github.com/gatehouse/gatehouse/pkg/observability"
)

// Checker answers permission checks. Global checks are served from the
// permission cache when possible; resource-scoped checks always go to the
// store so a freshly granted resource permission takes effect immediately.
//
// Cache failures degrade to store reads. Store failures deny.
type Checker struct {
	store   *Store
	cache   *PermissionCache
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewChecker creates a permission checker.
func NewChecker(store *Store, permCache *PermissionCache, logger *observability.Logger, metrics *observability.Metrics) *Checker {
	return &Checker{
		store:   store,
		cache:   permCache,
		logger:  logger,
		metrics: metrics,
	}
}

// Allowed evaluates a permission check. A permission outside the catalog is
// a caller error and yields an UnknownPermissionError, never a plain denial.
func (c *Checker) Allowed(ctx context.Context, check Check) (bool, error) {
	start := time.Now()

	if !catalog.Known(check.Permission) {
		c.metrics.RecordCheck(false, "catalog", time.Since(start))
		return false, &UnknownPermissionError{Permission: check.Permission}
	}

	if check.Scoped() {
		allowed, err := c.checkScoped(ctx, check)
		c.metrics.RecordCheck(allowed, "store", time.Since(start))
		return allowed, err
	}

	allowed, source, err := c.checkGlobal(ctx, check)
	c.metrics.RecordCheck(allowed, source, time.Since(start))
	return allowed, err
}

// EffectivePermissions returns a user's global permission set, computing and
// caching it on a miss. Admins get the full catalog.
func (c *Checker) EffectivePermissions(ctx context.Context, userID int64) ([]catalog.Permission, error) {
	entry, err := c.cachedEntry(ctx, userID)
	if err != nil {
		entry, err = c.computeAndCache(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	if entry.All {
		return catalog.All(), nil
	}

	perms := make([]catalog.Permission, 0, len(entry.Perms))
	for _, p := range entry.Perms {
		perms = append(perms, catalog.Permission(p))
	}
	return perms, nil
}

func (c *Checker) checkScoped(ctx context.Context, check Check) (bool, error) {
	admin, err := c.store.UserInGroupWithSlug(ctx, check.UserID, SlugAdmin)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}

	return c.store.UserHasResourcePermission(ctx, check.UserID, check.Permission, *check.ResourceType, *check.ResourceID)
}

func (c *Checker) checkGlobal(ctx context.Context, check Check) (bool, string, error) {
	if entry, err := c.cachedEntry(ctx, check.UserID); err == nil {
		return entry.Has(check.Permission), "cache", nil
	}

	entry, err := c.computeAndCache(ctx, check.UserID)
	if err != nil {
		return false, "store", err
	}
	return entry.Has(check.Permission), "store", nil
}

func (c *Checker) cachedEntry(ctx context.Context, userID int64) (*permEntry, error) {
	entry, err := c.cache.Get(ctx, userID)
	if err == nil {
		return entry, nil
	}
	if err != cache.ErrMiss {
		c.logger.WithField("user_id", userID).WithError(err).Warn("permission cache read failed, falling back to store")
	}
	return nil, err
}

func (c *Checker) computeAndCache(ctx context.Context, userID int64) (*permEntry, error) {
	admin, err := c.store.UserInGroupWithSlug(ctx, userID, SlugAdmin)
	if err != nil {
		return nil, err
	}

	var perms []catalog.Permission
	if !admin {
		perms, err = c.store.UserGlobalPermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	if err := c.cache.Set(ctx, userID, admin, perms); err != nil {
		c.logger.WithField("user_id", userID).WithError(err).Warn("failed to cache permission set")
	}

	entry := &permEntry{All: admin, Perms: make([]string, 0, len(perms))}
	for _, p := range perms {
		entry.Perms = append(entry.Perms, string(p))
	}
	return entry, nil
}
