//go:build integration

package rbac

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/catalog"
)

// Runs the full stack against a real Postgres, row locks included. The
// unit tests cover the same paths on SQLite with locking disabled.
func TestServiceAgainstPostgres(t *testing.T) {
	db := RequirePostgres(t)
	defer db.Close()

	ctx := context.Background()
	logger := testLogger()

	if err := RunMigrations(ctx, db, logger); err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}

	store := NewStore(db)
	permCache := NewPermissionCache(cache.NewMemoryStore(100, time.Hour), time.Hour, logger, nil)
	checker := NewChecker(store, permCache, logger, nil)
	service := NewService(db, store, permCache, logger, nil)

	if err := EnsureDefaultGroups(ctx, store, logger); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if err := EnsureDefaultGroups(ctx, store, logger); err != nil {
		t.Fatalf("Second bootstrap failed: %v", err)
	}

	slug := fmt.Sprintf("editors-%d", time.Now().UnixNano())
	group, err := service.CreateGroup(ctx, CreateGroupInput{Name: "Editors " + slug, Slug: slug})
	if err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	defer service.DeleteGroup(ctx, group.ID)

	userID := time.Now().UnixNano()
	if err := service.SetPermissions(ctx, group.ID, []GrantSpec{{Permission: catalog.PostsCreate}}); err != nil {
		t.Fatalf("Failed to set permissions: %v", err)
	}
	if err := service.AddMembers(ctx, group.ID, []int64{userID}); err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}

	allowed, err := checker.Allowed(ctx, Check{UserID: userID, Permission: catalog.PostsCreate})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !allowed {
		t.Error("Expected grant holder to pass")
	}

	if err := service.RemoveMembers(ctx, group.ID, []int64{userID}); err != nil {
		t.Fatalf("Failed to remove member: %v", err)
	}
	allowed, err = checker.Allowed(ctx, Check{UserID: userID, Permission: catalog.PostsCreate})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if allowed {
		t.Error("Expected removal to revoke access")
	}
}

// With exactly two administrators, two simultaneous removals of different
// members must serialize on the locked group row so that only one commits
// and the other sees the guard.
func TestRemoveMembersConcurrentLastAdminGuard(t *testing.T) {
	db := RequirePostgres(t)
	defer db.Close()

	ctx := context.Background()
	logger := testLogger()

	if err := RunMigrations(ctx, db, logger); err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}

	store := NewStore(db)
	permCache := NewPermissionCache(cache.NewMemoryStore(100, time.Hour), time.Hour, logger, nil)
	service := NewService(db, store, permCache, logger, nil)

	if err := EnsureDefaultGroups(ctx, store, logger); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	admins, err := store.GetGroupBySlug(ctx, SlugAdmin)
	if err != nil {
		t.Fatalf("Failed to fetch admin group: %v", err)
	}

	// Start from exactly two administrators, whatever earlier runs left
	// behind.
	if _, err := db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1`, admins.ID,
	); err != nil {
		t.Fatalf("Failed to reset admin membership: %v", err)
	}
	base := time.Now().UnixNano()
	first, second := base, base+1
	if err := service.AddMembers(ctx, admins.ID, []int64{first, second}); err != nil {
		t.Fatalf("Failed to seed administrators: %v", err)
	}

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, userID := range []int64{first, second} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			results <- service.RemoveMembers(ctx, admins.ID, []int64{id})
		}(userID)
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrLastAdmin):
			rejected++
		default:
			t.Fatalf("Unexpected removal error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("Expected one removal to succeed and one to hit ErrLastAdmin, got %d successes and %d rejections",
			succeeded, rejected)
	}

	remaining, err := store.ListMembers(ctx, admins.ID)
	if err != nil {
		t.Fatalf("Failed to list members: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("Expected exactly one administrator to survive, got %d", len(remaining))
	}
}
