package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore(100, time.Hour)
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

func TestMemoryStoreMiss(t *testing.T) {
	store := NewMemoryStore(100, time.Hour)

	_, err := store.Get(context.Background(), "absent")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss, got %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore(100, time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(ctx, "k")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after expiry, got %v", err)
	}
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore(100, 0)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := store.Get(ctx, "k"); err != nil {
		t.Errorf("Expected zero-TTL entry to stay, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(100, time.Hour)
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), 0)
	store.Set(ctx, "b", []byte("2"), 0)

	if err := store.Delete(ctx, "a", "absent"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss for deleted key, got %v", err)
	}
	if _, err := store.Get(ctx, "b"); err != nil {
		t.Errorf("Expected 'b' to survive, got %v", err)
	}
}

func TestMemoryStoreEvictsAtCapacity(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0)
	}

	if store.Len() > 10 {
		t.Errorf("Expected at most 10 entries, got %d", store.Len())
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(1000, time.Hour)
	ctx := context.Background()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%10)
				store.Set(ctx, key, []byte("v"), time.Minute)
				store.Get(ctx, key)
				store.Delete(ctx, key)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
