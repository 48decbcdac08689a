// Package cache provides the key-value backends the permission cache is
// built on. Two implementations exist: a Redis-backed store for deployments
// running more than one replica, and an in-process LRU store for single-node
// and test use.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a TTL-aware key-value store. All methods are safe for
// concurrent use.
type Store interface {
	// Get returns the value for key, or ErrMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL means no
	// expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, keys ...string) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
