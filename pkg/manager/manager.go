// Package manager routes package operations across registered backends. It
// is the single entry point for callers: reads are served cache-first with
// stale fallback, writes always go to the plugin, and multi-backend reads
// fan out in parallel without letting one backend's failure suppress the
// others.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dikkadev/hoard/pkg/backend"
	"github.com/dikkadev/hoard/pkg/cache"
	"github.com/dikkadev/hoard/pkg/registry"
	"github.com/dikkadev/hoard/pkg/store"
)

var (
	// ErrCapabilityUnsupported is returned when the target backend does
	// not declare the requested operation. The plugin is never invoked.
	ErrCapabilityUnsupported = errors.New("manager: capability unsupported")

	// ErrBackendUnavailable is returned when the target backend failed
	// its registration probes. The reason is attached.
	ErrBackendUnavailable = errors.New("manager: backend unavailable")

	// ErrBackendTimeout is returned when a plugin call exceeded the
	// operation timeout and no cached fallback existed.
	ErrBackendTimeout = errors.New("manager: backend timeout")
)

// DefaultTimeout bounds every plugin call issued by the router.
const DefaultTimeout = 30 * time.Second

// Options adjusts a single read operation.
type Options struct {
	Backend      string // Target one backend; empty fans out to all capable ones
	ForceRefresh bool   // Bypass the cache generation even when fresh
	Limit        int    // 0 means no limit
	Offset       int
}

// Result is the outcome of a read. Records carry their backend id; Stale
// marks backends served from data past its TTL; Failures collects
// per-backend errors reported alongside partial success.
type Result struct {
	Records  []*backend.PackageRecord
	Stale    map[string]bool
	Failures map[string]error
}

func newResult() *Result {
	return &Result{
		Stale:    make(map[string]bool),
		Failures: make(map[string]error),
	}
}

// Manager is the operation router.
type Manager struct {
	registry *registry.Registry
	caches   *cache.Manager
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a router over a registry and its cache manager. A timeout of
// 0 means DefaultTimeout. Staleness is only acted on by explicit reads and
// Refresh calls; there is no background auto-refresh.
func New(reg *registry.Registry, caches *cache.Manager, timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry: reg,
		caches:   caches,
		timeout:  timeout,
		logger:   logger,
	}
}

// Backends returns every probed backend descriptor, including unavailable
// ones with their recorded reason.
func (m *Manager) Backends() []backend.Descriptor {
	return m.registry.All()
}

// Get returns a single cached record.
func (m *Manager) Get(ctx context.Context, backendID, packageID string) (*backend.PackageRecord, error) {
	c, err := m.caches.Cache(backendID)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, packageID)
}

// Search queries one or all capable backends. Fresh caches are served
// locally; stale caches are refreshed first and fall back to stale data
// when the refresh fails; backends without a cached catalog are queried
// live through the plugin.
func (m *Manager) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	return m.fanOut(ctx, backend.CapSearch, opts, func(ctx context.Context, p backend.Plugin, c *cache.Cache, served *bool) ([]*backend.PackageRecord, error) {
		records, err := c.List(ctx, 0, 0)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			// No cached catalog: query live, results are returned
			// uncached to keep generations whole.
			*served = false
			live, err := m.pluginSearch(ctx, p, query)
			if err != nil {
				return nil, err
			}
			return window(live, opts.Limit, opts.Offset), nil
		}
		return filterRecords(records, query, opts.Limit, opts.Offset), nil
	})
}

// Installed lists installed packages from one or all capable backends.
func (m *Manager) Installed(ctx context.Context, opts Options) (*Result, error) {
	return m.fanOut(ctx, backend.CapListInstalled, opts, func(ctx context.Context, p backend.Plugin, c *cache.Cache, served *bool) ([]*backend.PackageRecord, error) {
		populated, err := c.Populated(ctx)
		if err != nil {
			return nil, err
		}
		if !populated {
			*served = false
			return m.pluginInstalled(ctx, p, opts.Limit, opts.Offset)
		}
		return c.ListInstalled(ctx, opts.Limit, opts.Offset)
	})
}

// ByCategory lists the packages of a category from one or all capable
// backends, in the order the backend reported them.
func (m *Manager) ByCategory(ctx context.Context, category string, opts Options) (*Result, error) {
	return m.fanOut(ctx, backend.CapCategories, opts, func(ctx context.Context, p backend.Plugin, c *cache.Cache, served *bool) ([]*backend.PackageRecord, error) {
		populated, err := c.Populated(ctx)
		if err != nil {
			return nil, err
		}
		if !populated {
			browser, ok := p.(backend.CategoryBrowser)
			if !ok {
				return nil, nil
			}
			*served = false
			return m.pluginByCategory(ctx, browser, category)
		}
		return c.ListByCategory(ctx, category, opts.Limit, opts.Offset)
	})
}

// Categories returns the category names and counts cached for a backend.
// stale reports that the refresh failed and the counts come from a
// generation past its TTL.
func (m *Manager) Categories(ctx context.Context, backendID string) (counts []store.CategoryCount, stale bool, err error) {
	if err := m.checkTarget(backendID, backend.CapCategories); err != nil {
		return nil, false, err
	}
	c, err := m.caches.Cache(backendID)
	if err != nil {
		return nil, false, err
	}
	if refreshErr := m.ensureFresh(ctx, backendID, c, false); refreshErr != nil {
		stale = true
		m.logger.Warn("serving categories from stale cache",
			zap.String("backend", backendID), zap.Error(refreshErr))
	}
	counts, err = c.Categories().Counts(ctx)
	if err != nil {
		return nil, false, err
	}
	return counts, stale, nil
}

// Upgradable lists packages with pending updates, live from the plugins.
func (m *Manager) Upgradable(ctx context.Context, opts Options) (*Result, error) {
	return m.fanOut(ctx, backend.CapListUpdates, opts, func(ctx context.Context, p backend.Plugin, c *cache.Cache, served *bool) ([]*backend.PackageRecord, error) {
		lister, ok := p.(backend.UpgradeLister)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not implement list_updates", ErrCapabilityUnsupported, p.ID())
		}
		*served = false

		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		records, err := lister.UpgradablePackages(callCtx)
		return tagRecords(records, p.ID()), m.classify(err)
	})
}

// Install delegates to the plugin and, on success, performs a targeted
// cache correction instead of a full re-population.
func (m *Manager) Install(ctx context.Context, backendID, packageID string) error {
	p, err := m.writeTarget(backendID, backend.CapInstall)
	if err != nil {
		return err
	}
	installer, ok := p.(backend.Installer)
	if !ok {
		return fmt.Errorf("%w: %s does not implement install", ErrCapabilityUnsupported, backendID)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := installer.Install(callCtx, packageID); err != nil {
		return fmt.Errorf("install %s/%s: %w", backendID, packageID, m.classify(err))
	}

	m.correctInstalled(ctx, backendID, packageID, true)
	return nil
}

// Remove delegates to the plugin and flips the cached installed flag on
// success. Eviction of the record is owned by the next full population.
func (m *Manager) Remove(ctx context.Context, backendID, packageID string) error {
	p, err := m.writeTarget(backendID, backend.CapRemove)
	if err != nil {
		return err
	}
	remover, ok := p.(backend.Remover)
	if !ok {
		return fmt.Errorf("%w: %s does not implement remove", ErrCapabilityUnsupported, backendID)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := remover.Remove(callCtx, packageID); err != nil {
		return fmt.Errorf("remove %s/%s: %w", backendID, packageID, m.classify(err))
	}

	m.correctInstalled(ctx, backendID, packageID, false)
	return nil
}

// Update delegates to the plugin and keeps the installed flag set on
// success.
func (m *Manager) Update(ctx context.Context, backendID, packageID string) error {
	p, err := m.writeTarget(backendID, backend.CapUpdate)
	if err != nil {
		return err
	}
	updater, ok := p.(backend.Updater)
	if !ok {
		return fmt.Errorf("%w: %s does not implement update", ErrCapabilityUnsupported, backendID)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := updater.Update(callCtx, packageID); err != nil {
		return fmt.Errorf("update %s/%s: %w", backendID, packageID, m.classify(err))
	}

	m.correctInstalled(ctx, backendID, packageID, true)
	return nil
}

// Refresh marks a backend's cache stale; the next read repopulates it.
func (m *Manager) Refresh(ctx context.Context, backendID string) error {
	return m.caches.ForceRefresh(ctx, backendID)
}

// RefreshAll marks every available backend's cache stale.
func (m *Manager) RefreshAll(ctx context.Context) error {
	for _, id := range m.registry.AvailableIDs() {
		if err := m.caches.ForceRefresh(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// readFunc serves one backend's share of a read from its cache. served is
// true on entry; a func that answered live from the plugin instead of the
// cache sets it to false so staleness flags stay accurate.
type readFunc func(ctx context.Context, p backend.Plugin, c *cache.Cache, served *bool) ([]*backend.PackageRecord, error)

// fanOut runs the read against the targeted backends in parallel. A single
// backend's failure never suppresses the results of the others: failures
// are collected in the result. An error is returned only for
// configuration-level faults (unknown backend, unavailable backend,
// capability unsupported on an explicit target).
func (m *Manager) fanOut(ctx context.Context, cap backend.Capability, opts Options, read readFunc) (*Result, error) {
	targets, err := m.targets(opts.Backend, cap)
	if err != nil {
		return nil, err
	}

	// Each goroutine writes only its own slot; the shared result maps are
	// filled in after the group is done.
	perBackend := make([][]*backend.PackageRecord, len(targets))
	staleFlags := make([]bool, len(targets))
	failures := make([]error, len(targets))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, p := range targets {
		i, p := i, p
		g.Go(func() error {
			records, stale, err := m.readBackend(groupCtx, p, opts, read)
			perBackend[i] = records
			staleFlags[i] = stale
			failures[i] = err
			if err != nil {
				m.logger.Warn("backend read failed",
					zap.String("backend", p.ID()), zap.Error(err))
			}
			// Failures are reported, never escalated.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge preserving backend order, then source order within a backend.
	result := newResult()
	for i, p := range targets {
		result.Records = append(result.Records, perBackend[i]...)
		if staleFlags[i] {
			result.Stale[p.ID()] = true
		}
		if failures[i] != nil {
			result.Failures[p.ID()] = failures[i]
		}
	}

	return result, nil
}

// readBackend applies the cache-first read path for one backend: fresh
// cache → serve it; stale or forced → coalesced repopulation through the
// plugin, falling back to the stale generation when the fetch fails.
func (m *Manager) readBackend(ctx context.Context, p backend.Plugin, opts Options, read readFunc) (records []*backend.PackageRecord, staleServed bool, err error) {
	c, err := m.caches.Cache(p.ID())
	if err != nil {
		return nil, false, err
	}

	refreshErr := m.ensureFresh(ctx, p.ID(), c, opts.ForceRefresh)

	fromCache := true
	records, err = read(ctx, p, c, &fromCache)
	if err != nil && errors.Is(err, store.ErrCorrupt) {
		// An undecodable namespace is purged and rebuilt from the plugin.
		m.logger.Warn("purging corrupt cache namespace",
			zap.String("backend", p.ID()), zap.Error(err))
		if purgeErr := c.Purge(ctx); purgeErr == nil {
			if refreshErr = m.ensureFresh(ctx, p.ID(), c, true); refreshErr == nil {
				fromCache = true
				records, err = read(ctx, p, c, &fromCache)
			}
		}
	}
	if err != nil {
		if refreshErr != nil {
			return nil, false, refreshErr
		}
		return nil, false, err
	}

	if refreshErr != nil && fromCache {
		// The refresh failed but a previous generation answered:
		// degrade gracefully and say so.
		return records, true, refreshErr
	}
	return records, false, nil
}

// ensureFresh repopulates the backend's cache when its generation is stale
// or a refresh was forced. Populations for the same backend are coalesced;
// the previous generation stays committed when the fetch fails.
func (m *Manager) ensureFresh(ctx context.Context, backendID string, c *cache.Cache, force bool) error {
	stale, err := c.Stale(ctx)
	if err != nil {
		return err
	}
	if !stale && !force {
		return nil
	}

	return c.Populate(ctx, func(ctx context.Context) ([]*backend.PackageRecord, error) {
		p, ok := m.registry.Get(backendID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, backendID)
		}

		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		records, err := p.Packages(callCtx)
		if err != nil {
			return nil, m.classify(err)
		}
		return normalizeBatch(p, records), nil
	})
}

// targets resolves the backends a read applies to. An explicit backend must
// be registered, available and capable; with no filter, every available
// backend declaring the capability participates.
func (m *Manager) targets(backendID string, cap backend.Capability) ([]backend.Plugin, error) {
	if backendID != "" {
		if err := m.checkTarget(backendID, cap); err != nil {
			return nil, err
		}
		p, _ := m.registry.Get(backendID)
		return []backend.Plugin{p}, nil
	}

	var targets []backend.Plugin
	for _, id := range m.registry.AvailableIDs() {
		p, _ := m.registry.Get(id)
		if p.Capabilities().Has(cap) {
			targets = append(targets, p)
		}
	}
	return targets, nil
}

func (m *Manager) checkTarget(backendID string, cap backend.Capability) error {
	desc, ok := m.registry.Describe(backendID)
	if !ok {
		return fmt.Errorf("%w: %s", cache.ErrUnknownBackend, backendID)
	}
	if !desc.Available {
		return fmt.Errorf("%w: %s (%s)", ErrBackendUnavailable, backendID, desc.Reason)
	}
	if !desc.Capabilities.Has(cap) {
		return fmt.Errorf("%w: %s does not declare %s", ErrCapabilityUnsupported, backendID, cap)
	}
	return nil
}

func (m *Manager) writeTarget(backendID string, cap backend.Capability) (backend.Plugin, error) {
	if err := m.checkTarget(backendID, cap); err != nil {
		return nil, err
	}
	p, _ := m.registry.Get(backendID)
	return p, nil
}

// correctInstalled applies the targeted post-write cache correction. A
// record the cache has never seen is not an error; the next population
// picks it up.
func (m *Manager) correctInstalled(ctx context.Context, backendID, packageID string, installed bool) {
	c, err := m.caches.Cache(backendID)
	if err != nil {
		return
	}
	if err := c.SetInstalled(ctx, packageID, installed); err != nil && !errors.Is(err, cache.ErrNotFound) {
		m.logger.Warn("installed-flag correction failed",
			zap.String("backend", backendID),
			zap.String("package", packageID),
			zap.Error(err))
	}
}

func (m *Manager) pluginSearch(ctx context.Context, p backend.Plugin, query string) ([]*backend.PackageRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	records, err := p.Search(callCtx, query)
	if err != nil {
		return nil, m.classify(err)
	}
	return tagRecords(records, p.ID()), nil
}

func (m *Manager) pluginInstalled(ctx context.Context, p backend.Plugin, limit, offset int) ([]*backend.PackageRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	records, err := p.InstalledPackages(callCtx, limit, offset)
	if err != nil {
		return nil, m.classify(err)
	}
	return tagRecords(records, p.ID()), nil
}

func (m *Manager) pluginByCategory(ctx context.Context, browser backend.CategoryBrowser, category string) ([]*backend.PackageRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return browser.PackagesByCategory(callCtx, category)
}

// classify maps a timeout to the router's timeout error so callers can
// distinguish it from other backend failures.
func (m *Manager) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	return err
}

// normalizeBatch stamps the backend id on every record and applies the
// backend's category mapping. The mapping is pure and applied only here,
// at population time, so index rebuilds are deterministic.
func normalizeBatch(p backend.Plugin, records []*backend.PackageRecord) []*backend.PackageRecord {
	for _, rec := range records {
		rec.Backend = p.ID()
		rec.Category = p.CategoryMapping(rec.Category)
	}
	return records
}

func tagRecords(records []*backend.PackageRecord, backendID string) []*backend.PackageRecord {
	for _, rec := range records {
		if rec.Backend == "" {
			rec.Backend = backendID
		}
	}
	return records
}

// filterRecords matches cached records against a query, case-insensitive
// over id, name and description, preserving cache order.
func filterRecords(records []*backend.PackageRecord, query string, limit, offset int) []*backend.PackageRecord {
	query = strings.ToLower(strings.TrimSpace(query))

	var matched []*backend.PackageRecord
	for _, rec := range records {
		if query == "" ||
			strings.Contains(strings.ToLower(rec.ID), query) ||
			strings.Contains(strings.ToLower(rec.Name), query) ||
			strings.Contains(strings.ToLower(rec.Description), query) {
			matched = append(matched, rec)
		}
	}

	return window(matched, limit, offset)
}

// window applies offset then limit, preserving order.
func window(records []*backend.PackageRecord, limit, offset int) []*backend.PackageRecord {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
