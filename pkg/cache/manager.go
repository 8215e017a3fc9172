package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dikkadev/hoard/pkg/store"
)

// ErrUnknownBackend is returned when an operation targets a backend id that
// was never registered.
var ErrUnknownBackend = errors.New("cache: unknown backend")

// TTLConfig holds the per-backend time-to-live configuration.
type TTLConfig struct {
	// Default applies to every backend without an override.
	Default time.Duration
	// PerBackend overrides the default for specific backend ids.
	PerBackend map[string]time.Duration
}

// TTL returns the effective TTL for a backend.
func (c TTLConfig) TTL(backendID string) time.Duration {
	if d, ok := c.PerBackend[backendID]; ok && d > 0 {
		return d
	}
	return c.Default
}

// Manager owns one cache per registered backend behind a shared store. Only
// the manager's caches open write transactions; plugin code never touches
// the store. Caches are created lazily on first access.
type Manager struct {
	store  store.Store
	ttls   TTLConfig
	logger *zap.Logger
	known  map[string]bool

	mu     sync.Mutex
	caches map[string]*Cache
}

// NewManager creates a manager for the given registered backend ids.
func NewManager(st store.Store, backendIDs []string, ttls TTLConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	known := make(map[string]bool, len(backendIDs))
	for _, id := range backendIDs {
		known[id] = true
	}
	return &Manager{
		store:  st,
		ttls:   ttls,
		logger: logger,
		known:  known,
		caches: make(map[string]*Cache),
	}
}

// Cache returns the cache for a registered backend, creating it on first
// access. Fails with ErrUnknownBackend otherwise.
func (m *Manager) Cache(backendID string) (*Cache, error) {
	if !m.known[backendID] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backendID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[backendID]; ok {
		return c, nil
	}
	c := NewCache(backendID, m.store, m.ttls.TTL(backendID), m.logger)
	m.caches[backendID] = c
	return c, nil
}

// Backends returns the registered backend ids the manager serves.
func (m *Manager) Backends() []string {
	ids := make([]string, 0, len(m.known))
	for id := range m.known {
		ids = append(ids, id)
	}
	return ids
}

// ForceRefresh marks the named cache stale. It does not fetch anything:
// the router decides when and how fresh data is obtained.
func (m *Manager) ForceRefresh(ctx context.Context, backendID string) error {
	c, err := m.Cache(backendID)
	if err != nil {
		return err
	}
	return c.Invalidate(ctx)
}
