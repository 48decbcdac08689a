package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestRedisStoreSetGet(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Expected 'v', got %q", got)
	}
}

func TestRedisStoreMiss(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, err := store.Get(context.Background(), "absent")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss, got %v", err)
	}
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "k")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after TTL expiry, got %v", err)
	}
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b"} {
		if err := store.Set(ctx, k, []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if err := store.Delete(ctx, "a", "b", "absent"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after delete, got %v", err)
	}
}

func TestRedisStoreDeleteNoKeys(t *testing.T) {
	store, _ := newTestRedisStore(t)

	if err := store.Delete(context.Background()); err != nil {
		t.Errorf("Expected nil for empty delete, got %v", err)
	}
}

func TestRedisStorePing(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	mr.Close()

	if err := store.Ping(ctx); err == nil {
		t.Error("Expected ping to fail after server close")
	}
}

func TestNewRedisStoreInvalidURL(t *testing.T) {
	_, err := NewRedisStore(RedisOptions{URL: "not-a-url"})
	if err == nil {
		t.Error("Expected error for invalid redis URL")
	}
}
