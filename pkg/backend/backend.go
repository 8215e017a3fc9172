package backend

import (
	"context"
	"time"
)

// Capability is a named operation a backend declares it supports.
type Capability string

// The fixed capability vocabulary. A backend declares a subset; the router
// refuses operations outside the declared set without touching the plugin.
const (
	CapSearch        Capability = "search"
	CapInstall       Capability = "install"
	CapRemove        Capability = "remove"
	CapUpdate        Capability = "update"
	CapListInstalled Capability = "list_installed"
	CapListUpdates   Capability = "list_updates"
	CapCategories    Capability = "categories"
	CapRatings       Capability = "ratings"
	CapRepositories  Capability = "repositories"
	CapDependencies  Capability = "dependencies"
	CapPermissions   Capability = "permissions"
)

// Capabilities is a declared capability set.
type Capabilities map[Capability]bool

// NewCapabilities builds a set from the given capabilities.
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(Capabilities, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Has reports whether the capability is declared.
func (c Capabilities) Has(cap Capability) bool {
	return c[cap]
}

// List returns the declared capabilities in unspecified order.
func (c Capabilities) List() []Capability {
	out := make([]Capability, 0, len(c))
	for cap, ok := range c {
		if ok {
			out = append(out, cap)
		}
	}
	return out
}

// PackageRecord is one package as reported by a backend. Records are
// immutable once cached: a refresh replaces the whole record, it never
// patches individual fields (the installed flag is the single exception,
// see the cache layer).
type PackageRecord struct {
	Backend     string         `json:"backend"`     // Backend id the record belongs to
	ID          string         `json:"id"`          // Package identifier, unique per backend
	Name        string         `json:"name"`        // Display name
	Version     string         `json:"version"`     // Current version
	Description string         `json:"description"` // Short description
	Installed   bool           `json:"installed"`   // Whether the package is installed
	Size        int64          `json:"size"`        // Size in bytes, 0 when unknown
	Category    string         `json:"category"`    // Normalized category, post mapping
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Descriptor describes a registered backend.
type Descriptor struct {
	ID           string
	DisplayName  string
	Version      string
	Capabilities Capabilities
	Available    bool
	Reason       string // Why the backend is unavailable, empty otherwise
}

// Plugin is the contract every backend implements. Optional operations live
// on the extension interfaces below; the declared capability set is checked
// before any of them is dispatched.
type Plugin interface {
	// ID returns the stable backend identifier.
	ID() string

	// DisplayName returns the human-readable backend name.
	DisplayName() string

	// Version returns the backend implementation version.
	Version() string

	// IsAvailable reports whether the backend can operate on this system.
	IsAvailable(ctx context.Context) bool

	// Capabilities returns the declared capability set.
	Capabilities() Capabilities

	// SystemDependencies returns the system commands the backend needs.
	SystemDependencies() []Dependency

	// CategoryMapping maps a backend-specific category string to a
	// standard category. It must be pure: it is applied once at
	// population time, never at read time.
	CategoryMapping(category string) string

	// Packages returns the backend's full current record set. It is the
	// only input to cache population; a network-style backend with no
	// enumerable catalog returns an empty set.
	Packages(ctx context.Context) ([]*PackageRecord, error)

	// Search queries the backend live.
	Search(ctx context.Context, query string) ([]*PackageRecord, error)

	// InstalledPackages lists installed packages live.
	InstalledPackages(ctx context.Context, limit, offset int) ([]*PackageRecord, error)
}

// Installer is implemented by backends declaring the install capability.
type Installer interface {
	Install(ctx context.Context, packageID string) error
}

// Remover is implemented by backends declaring the remove capability.
type Remover interface {
	Remove(ctx context.Context, packageID string) error
}

// Updater is implemented by backends declaring the update capability.
type Updater interface {
	Update(ctx context.Context, packageID string) error
}

// UpgradeLister is implemented by backends declaring the list_updates
// capability.
type UpgradeLister interface {
	UpgradablePackages(ctx context.Context) ([]*PackageRecord, error)
}

// CategoryBrowser is implemented by backends declaring the categories
// capability and able to enumerate categories themselves.
type CategoryBrowser interface {
	Categories(ctx context.Context) ([]string, error)
	PackagesByCategory(ctx context.Context, category string) ([]*PackageRecord, error)
}

// Describe builds a descriptor for a plugin. Availability and reason are
// filled in by the registry after probing.
func Describe(p Plugin) Descriptor {
	return Descriptor{
		ID:           p.ID(),
		DisplayName:  p.DisplayName(),
		Version:      p.Version(),
		Capabilities: p.Capabilities(),
	}
}

// DefaultTTL is the cache time-to-live used when no per-backend override is
// configured.
const DefaultTTL = 30 * time.Minute
