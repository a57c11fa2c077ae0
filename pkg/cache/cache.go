// Package cache provides the key-value caches used by the planning runner.
//
// Two things are cached: computed plans, keyed by a hash of the device list and
// the policy, and rendered artifacts, keyed by the plan hash and the output
// format. Implementations:
//
//   - [NullCache]: never stores anything (the default)
//   - [FileCache]: one JSON file per entry under a directory, used by the CLI
//   - [RedisCache]: shared cache for multi-instance API deployments
//
// Keys are built by a [Keyer] so that scoped deployments can namespace them
// with [NewScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Cache TTLs.
const (
	// TTLPlan is how long a computed plan stays cached.
	TTLPlan = 7 * 24 * time.Hour

	// TTLArtifact is how long a rendered artifact stays cached.
	TTLArtifact = 30 * 24 * time.Hour
)

// Cache is a byte-oriented key-value store with per-entry expiry.
type Cache interface {
	// Get returns the cached value and whether it was found.
	// A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
