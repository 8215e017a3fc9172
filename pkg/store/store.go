package store

import (
	"context"
	"errors"
	"time"

	"github.com/dikkadev/hoard/pkg/backend"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// ErrCorrupt is returned when a backend's namespace cannot be read. The
// caller recovers by purging the namespace and repopulating; other backends
// are unaffected.
var ErrCorrupt = errors.New("store: namespace corrupt")

// CategoryCount is a category name with the number of packages in it.
type CategoryCount struct {
	Category string
	Count    int
}

// Store is the embedded store backing the package caches. Every method is
// namespaced by backend id so distinct backends can expose the same package
// id without colliding. Multi-row writes are applied as single transactions:
// readers observe either the previous complete generation or the next one,
// never a mixture.
type Store interface {
	// Initialize creates the schema.
	Initialize(ctx context.Context) error

	// GetRecord returns a single record, or nil when absent.
	GetRecord(ctx context.Context, backendID, packageID string) (*backend.PackageRecord, error)

	// ListRecords returns records ordered by package id. limit <= 0 means
	// no limit. The ordering is stable so shifting offsets over an
	// unchanged set never duplicate or skip records.
	ListRecords(ctx context.Context, backendID string, limit, offset int) ([]*backend.PackageRecord, error)

	// ListInstalled returns installed records ordered by package id.
	ListInstalled(ctx context.Context, backendID string, limit, offset int) ([]*backend.PackageRecord, error)

	// CategoryIDs returns the package ids indexed under a category, in
	// source-batch insertion order.
	CategoryIDs(ctx context.Context, backendID, category string) ([]string, error)

	// Categories returns the categories present for a backend with their
	// package counts, ordered by name.
	Categories(ctx context.Context, backendID string) ([]CategoryCount, error)

	// Count returns the number of records cached for a backend.
	Count(ctx context.Context, backendID string) (int, error)

	// ReplaceAll atomically replaces the backend's records and rebuilds
	// its indexes from the given batch, recording populatedAt as the
	// generation timestamp.
	ReplaceAll(ctx context.Context, backendID string, records []*backend.PackageRecord, populatedAt time.Time) error

	// SetInstalled updates only the installed flag of a record. It does
	// not touch the generation timestamp. Returns ErrNotFound when the
	// record is absent.
	SetInstalled(ctx context.Context, backendID, packageID string, installed bool) error

	// PopulatedAt returns the generation timestamp for a backend, or the
	// zero time when the backend was never populated or was invalidated.
	PopulatedAt(ctx context.Context, backendID string) (time.Time, error)

	// Invalidate clears the generation timestamp without deleting data,
	// so stale records stay servable as a fallback.
	Invalidate(ctx context.Context, backendID string) error

	// Purge removes all data for a backend, indexes included.
	Purge(ctx context.Context, backendID string) error

	// Close closes the store.
	Close() error
}
