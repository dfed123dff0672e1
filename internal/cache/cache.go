// Package cache keeps completed resource records close at hand so status
// polls do not reach the database. The store stays authoritative: callers
// treat every cache error as a miss.
package cache

import (
	"context"
	"errors"

	"github.com/phrazzld/vidscribe/internal/domain"
)

var (
	// ErrMiss is returned by Get when nothing is cached for the fingerprint.
	ErrMiss = errors.New("cache miss")

	// ErrNotCacheable is returned by Set for records that are not completed.
	// Pending, processing and error states are never cached.
	ErrNotCacheable = errors.New("only completed records can be cached")
)

// ResourceCache maps a fingerprint to the snapshot of its completed record.
type ResourceCache interface {
	// Get returns the cached record or ErrMiss.
	Get(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error)

	// Set caches r. It returns ErrNotCacheable unless r is completed.
	Set(ctx context.Context, r *domain.Resource) error

	// Invalidate drops any cached record for fp.
	Invalidate(ctx context.Context, fp domain.Fingerprint) error
}

// Nop is a ResourceCache that stores nothing. It is used when no cache
// server is configured.
type Nop struct{}

var _ ResourceCache = Nop{}

// Get always misses.
func (Nop) Get(context.Context, domain.Fingerprint) (*domain.Resource, error) { return nil, ErrMiss }

// Set validates r and discards it.
func (Nop) Set(_ context.Context, r *domain.Resource) error {
	if r == nil || r.Status != domain.StatusCompleted {
		return ErrNotCacheable
	}
	return nil
}

// Invalidate does nothing.
func (Nop) Invalidate(context.Context, domain.Fingerprint) error { return nil }
