// Package persistence stages step outputs outside the wizard state so they
// survive a reload: evidence descriptors, the bearer token and the one-shot
// signup to KYC handoff.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys
var ErrNotFound = errors.New("persistence: key not found")

// Store is a flat key/value store with optional expiry. A zero ttl keeps
// the value until it is deleted.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
