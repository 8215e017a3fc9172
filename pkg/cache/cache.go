// Package cache holds the per-backend package caches and the manager that
// multiplexes them. Caches never fetch data themselves: population input
// always comes from the router, and only this package writes to the store.
package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dikkadev/hoard/pkg/backend"
	"github.com/dikkadev/hoard/pkg/store"
)

// ErrNotFound is returned when a package is not cached.
var ErrNotFound = store.ErrNotFound

// Cache is the package cache for a single backend. Reads may run
// concurrently with an in-flight population and observe the last committed
// generation; populations for the same backend are coalesced so at most one
// is in flight at a time.
type Cache struct {
	backendID string
	store     store.Store
	ttl       time.Duration
	logger    *zap.Logger

	populate singleflight.Group
}

// NewCache creates a cache for one backend namespace.
func NewCache(backendID string, st store.Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = backend.DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		backendID: backendID,
		store:     st,
		ttl:       ttl,
		logger:    logger.With(zap.String("backend", backendID)),
	}
}

// BackendID returns the backend this cache belongs to.
func (c *Cache) BackendID() string {
	return c.backendID
}

// Get returns a single cached record. Returns ErrNotFound when absent.
func (c *Cache) Get(ctx context.Context, packageID string) (*backend.PackageRecord, error) {
	rec, err := c.store.GetRecord(ctx, c.backendID, packageID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, c.backendID, packageID)
	}
	return rec, nil
}

// List returns cached records ordered by package id.
func (c *Cache) List(ctx context.Context, limit, offset int) ([]*backend.PackageRecord, error) {
	return c.store.ListRecords(ctx, c.backendID, limit, offset)
}

// ListInstalled returns cached installed records ordered by package id.
func (c *Cache) ListInstalled(ctx context.Context, limit, offset int) ([]*backend.PackageRecord, error) {
	return c.store.ListInstalled(ctx, c.backendID, limit, offset)
}

// ListByCategory resolves the category index. Identifiers with no matching
// primary record are skipped and logged as a consistency warning; the next
// full population corrects the index.
func (c *Cache) ListByCategory(ctx context.Context, category string, limit, offset int) ([]*backend.PackageRecord, error) {
	ids, err := c.store.CategoryIDs(ctx, c.backendID, category)
	if err != nil {
		return nil, err
	}

	if offset > 0 {
		if offset >= len(ids) {
			return nil, nil
		}
		ids = ids[offset:]
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	records := make([]*backend.PackageRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := c.store.GetRecord(ctx, c.backendID, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			c.logger.Warn("category index references missing record",
				zap.String("category", category),
				zap.String("package", id))
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReplaceAll replaces the complete cache content in one atomic batch and
// rebuilds all indexes, so readers never see a mix of generations.
func (c *Cache) ReplaceAll(ctx context.Context, records []*backend.PackageRecord) error {
	return c.store.ReplaceAll(ctx, c.backendID, records, time.Now())
}

// Populate fetches a fresh batch and applies it. Concurrent calls for the
// same backend are coalesced: late callers wait for the in-flight
// population and share its outcome instead of writing a second generation.
func (c *Cache) Populate(ctx context.Context, fetch func(context.Context) ([]*backend.PackageRecord, error)) error {
	_, err, _ := c.populate.Do("populate", func() (any, error) {
		records, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return nil, c.ReplaceAll(ctx, records)
	})
	return err
}

// SetInstalled updates only the installed flag of a cached record. The
// record's TTL semantics are unchanged.
func (c *Cache) SetInstalled(ctx context.Context, packageID string, installed bool) error {
	return c.store.SetInstalled(ctx, c.backendID, packageID, installed)
}

// Populated reports whether the cache holds a committed generation.
func (c *Cache) Populated(ctx context.Context) (bool, error) {
	count, err := c.store.Count(ctx, c.backendID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Stale reports whether the cached generation is past its TTL. A never
// populated or invalidated cache is always stale.
func (c *Cache) Stale(ctx context.Context) (bool, error) {
	at, err := c.store.PopulatedAt(ctx, c.backendID)
	if err != nil {
		return true, err
	}
	if at.IsZero() {
		return true, nil
	}
	return time.Since(at) > c.ttl, nil
}

// Invalidate forces Stale to report true without deleting data, so stale
// records remain servable while a refresh is attempted.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.store.Invalidate(ctx, c.backendID)
}

// Purge drops the backend's namespace entirely. Used to recover from a
// corrupt namespace; the next population rebuilds it.
func (c *Cache) Purge(ctx context.Context) error {
	return c.store.Purge(ctx, c.backendID)
}

// Categories returns the thin category view over this cache. It is derived
// from the same batch as the primary records and is never updated
// independently.
func (c *Cache) Categories() *Categories {
	return &Categories{cache: c}
}

// Categories exposes the category names and per-category counts for a
// backend's cache.
type Categories struct {
	cache *Cache
}

// List returns the category names present, ordered by name.
func (v *Categories) List(ctx context.Context) ([]string, error) {
	counts, err := v.Counts(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.Category)
	}
	return names, nil
}

// Counts returns the categories with their package counts, ordered by name.
func (v *Categories) Counts(ctx context.Context) ([]store.CategoryCount, error) {
	return v.cache.store.Categories(ctx, v.cache.backendID)
}
