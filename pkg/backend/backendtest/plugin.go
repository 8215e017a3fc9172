// Package backendtest provides a configurable mock backend plugin.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dikkadev/hoard/pkg/backend"
)

// Plugin is a mock backend for tests. Zero value is unusable; set BackendID
// and Available at least. Every invocation is counted so tests can assert
// that capability gating short-circuits before the plugin is touched.
type Plugin struct {
	BackendID   string
	Name        string
	PluginVer   string
	Available   bool
	Caps        backend.Capabilities
	Deps        []backend.Dependency
	Mapping     map[string]string
	Records     []*backend.PackageRecord
	PackagesErr error

	SearchFunc     func(ctx context.Context, query string) ([]*backend.PackageRecord, error)
	InstallFunc    func(ctx context.Context, packageID string) error
	RemoveFunc     func(ctx context.Context, packageID string) error
	UpdateFunc     func(ctx context.Context, packageID string) error
	UpgradableFunc func(ctx context.Context) ([]*backend.PackageRecord, error)

	mu    sync.Mutex
	calls map[string]int
}

func (p *Plugin) count(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[method]++
}

// Calls returns how often the named method was invoked.
func (p *Plugin) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Plugin) ID() string          { return p.BackendID }
func (p *Plugin) DisplayName() string { return p.Name }

func (p *Plugin) Version() string {
	if p.PluginVer == "" {
		return "0.0.0-test"
	}
	return p.PluginVer
}

func (p *Plugin) IsAvailable(ctx context.Context) bool {
	p.count("IsAvailable")
	return p.Available
}

func (p *Plugin) Capabilities() backend.Capabilities {
	return p.Caps
}

func (p *Plugin) SystemDependencies() []backend.Dependency {
	return p.Deps
}

func (p *Plugin) CategoryMapping(category string) string {
	if mapped, ok := p.Mapping[category]; ok {
		return mapped
	}
	return category
}

func (p *Plugin) Packages(ctx context.Context) ([]*backend.PackageRecord, error) {
	p.count("Packages")
	if p.PackagesErr != nil {
		return nil, p.PackagesErr
	}
	return p.Records, nil
}

func (p *Plugin) Search(ctx context.Context, query string) ([]*backend.PackageRecord, error) {
	p.count("Search")
	if p.SearchFunc == nil {
		return nil, fmt.Errorf("backendtest: Search not configured for %s", p.BackendID)
	}
	return p.SearchFunc(ctx, query)
}

func (p *Plugin) InstalledPackages(ctx context.Context, limit, offset int) ([]*backend.PackageRecord, error) {
	p.count("InstalledPackages")
	var out []*backend.PackageRecord
	for _, rec := range p.Records {
		if rec.Installed {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p *Plugin) Install(ctx context.Context, packageID string) error {
	p.count("Install")
	if p.InstallFunc == nil {
		return fmt.Errorf("backendtest: Install not configured for %s", p.BackendID)
	}
	return p.InstallFunc(ctx, packageID)
}

func (p *Plugin) Remove(ctx context.Context, packageID string) error {
	p.count("Remove")
	if p.RemoveFunc == nil {
		return fmt.Errorf("backendtest: Remove not configured for %s", p.BackendID)
	}
	return p.RemoveFunc(ctx, packageID)
}

func (p *Plugin) Update(ctx context.Context, packageID string) error {
	p.count("Update")
	if p.UpdateFunc == nil {
		return fmt.Errorf("backendtest: Update not configured for %s", p.BackendID)
	}
	return p.UpdateFunc(ctx, packageID)
}

func (p *Plugin) UpgradablePackages(ctx context.Context) ([]*backend.PackageRecord, error) {
	p.count("UpgradablePackages")
	if p.UpgradableFunc == nil {
		return nil, fmt.Errorf("backendtest: UpgradablePackages not configured for %s", p.BackendID)
	}
	return p.UpgradableFunc(ctx)
}
