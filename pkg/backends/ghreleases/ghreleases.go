// Package ghreleases is a backend that installs single-binary tools from
// GitHub release assets. Installed state lives in a JSON manifest next to
// the binaries; the GitHub search API serves live queries.
package ghreleases

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dikkadev/hoard/pkg/backend"
	"github.com/dikkadev/hoard/pkg/github"
	"github.com/dikkadev/hoard/pkg/platform"
)

const backendID = "github"

// Options configures the backend.
type Options struct {
	// Client is the GitHub API client. Required.
	Client github.Client
	// BinDir is the directory holding symlinks to installed binaries.
	BinDir string
	// BinActualDir is the directory holding the actual binaries.
	BinActualDir string
	// ManifestPath is the JSON file recording installed packages.
	ManifestPath string
	// Platform overrides the host platform. Zero value means current.
	Platform platform.Platform
	// Logger for operation logging. Nil means no logging.
	Logger *zap.Logger
}

// Backend implements the GitHub releases backend.
type Backend struct {
	client       github.Client
	binDir       string
	binActualDir string
	manifestPath string
	platform     platform.Platform
	logger       *zap.Logger

	mu sync.Mutex // guards manifest reads and writes
}

// manifestEntry is one installed package in the manifest.
type manifestEntry struct {
	Version     string `json:"version"`
	BinaryName  string `json:"binary_name"`
	InstallPath string `json:"install_path"`
	AssetName   string `json:"asset_name"`
	Size        int64  `json:"size,omitempty"`
}

// New creates the backend.
func New(opts Options) *Backend {
	p := opts.Platform
	if p.OS == "" {
		p = platform.Current()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		client:       opts.Client,
		binDir:       opts.BinDir,
		binActualDir: opts.BinActualDir,
		manifestPath: opts.ManifestPath,
		platform:     p,
		logger:       logger.Named("ghreleases"),
	}
}

func (b *Backend) ID() string          { return backendID }
func (b *Backend) DisplayName() string { return "GitHub Releases" }
func (b *Backend) Version() string     { return "1.0.0" }

func (b *Backend) IsAvailable(ctx context.Context) bool {
	// Pure HTTP backend; nothing to probe beyond the filesystem layout.
	return b.client != nil && b.binDir != "" && b.manifestPath != ""
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.NewCapabilities(
		backend.CapSearch,
		backend.CapInstall,
		backend.CapRemove,
		backend.CapUpdate,
		backend.CapListInstalled,
	)
}

func (b *Backend) SystemDependencies() []backend.Dependency {
	return nil
}

// CategoryMapping is the identity: GitHub repositories carry no category
// taxonomy worth normalizing.
func (b *Backend) CategoryMapping(category string) string {
	return category
}

// Packages returns the empty set: GitHub has no enumerable catalog, so
// there is nothing to cache. Searches and installed listings are always
// served live.
func (b *Backend) Packages(ctx context.Context) ([]*backend.PackageRecord, error) {
	return nil, nil
}

// Search queries the GitHub search API live.
func (b *Backend) Search(ctx context.Context, query string) ([]*backend.PackageRecord, error) {
	result, err := b.client.SearchRepositories(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search github: %w", err)
	}

	b.mu.Lock()
	manifest, err := b.loadManifest()
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	records := make([]*backend.PackageRecord, 0, len(result.Items))
	for _, repo := range result.Items {
		entry, installed := manifest[repo.FullName]
		rec := &backend.PackageRecord{
			Backend:     backendID,
			ID:          repo.FullName,
			Name:        repo.Name,
			Description: repo.Description,
			Installed:   installed,
			Metadata: map[string]any{
				"stars": repo.Stars,
			},
		}
		if repo.Language != "" {
			rec.Metadata["language"] = repo.Language
		}
		if installed {
			rec.Version = entry.Version
			rec.Size = entry.Size
		}
		records = append(records, rec)
	}
	return records, nil
}

// InstalledPackages lists installed packages from the manifest in ID order.
func (b *Backend) InstalledPackages(ctx context.Context, limit, offset int) ([]*backend.PackageRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	manifest, err := b.loadManifest()
	if err != nil {
		return nil, err
	}

	ids := sortedIDs(manifest)
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	records := make([]*backend.PackageRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, recordFromEntry(id, manifest[id]))
	}
	return records, nil
}

// Install downloads the latest release binary for an owner/repo package,
// links it into the bin directory and records it in the manifest.
func (b *Backend) Install(ctx context.Context, packageID string) error {
	owner, repo, err := splitRepoPath(packageID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	manifest, err := b.loadManifest()
	if err != nil {
		return err
	}
	if _, ok := manifest[packageID]; ok {
		return fmt.Errorf("package %s is already installed", packageID)
	}

	release, err := b.client.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to get latest release: %w", err)
	}
	if len(release.Assets) == 0 {
		return fmt.Errorf("no assets found in the latest release")
	}

	asset, err := b.platform.SelectAsset(release.Assets)
	if err != nil {
		return err
	}

	binaryName := strings.TrimSuffix(asset.Name, filepath.Ext(asset.Name))
	actualPath := filepath.Join(b.binActualDir, fmt.Sprintf("%s-%s-%s", owner, repo, release.TagName))
	symlinkPath := filepath.Join(b.binDir, binaryName)

	if err := b.client.DownloadAsset(ctx, asset.DownloadURL, actualPath); err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}

	if err := os.Chmod(actualPath, 0755); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to make binary executable: %w", err)
	}

	if err := os.Symlink(actualPath, symlinkPath); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to create symlink: %w", err)
	}

	manifest[packageID] = manifestEntry{
		Version:     release.TagName,
		BinaryName:  binaryName,
		InstallPath: actualPath,
		AssetName:   asset.Name,
		Size:        asset.Size,
	}
	if err := b.saveManifest(manifest); err != nil {
		os.Remove(symlinkPath)
		os.Remove(actualPath)
		return err
	}

	b.logger.Info("installed package",
		zap.String("package", packageID),
		zap.String("version", release.TagName),
		zap.String("asset", asset.Name))
	return nil
}

// Update replaces an installed binary with the latest release. The symlink
// is swapped atomically via a temporary link.
func (b *Backend) Update(ctx context.Context, packageID string) error {
	owner, repo, err := splitRepoPath(packageID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	manifest, err := b.loadManifest()
	if err != nil {
		return err
	}
	entry, ok := manifest[packageID]
	if !ok {
		return fmt.Errorf("package %s is not installed", packageID)
	}

	release, err := b.client.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to get latest release: %w", err)
	}
	if release.TagName == entry.Version {
		b.logger.Info("package already at latest version",
			zap.String("package", packageID),
			zap.String("version", entry.Version))
		return nil
	}
	if len(release.Assets) == 0 {
		return fmt.Errorf("no assets found in the latest release")
	}

	asset, err := b.platform.SelectAsset(release.Assets)
	if err != nil {
		return err
	}

	actualPath := filepath.Join(b.binActualDir, fmt.Sprintf("%s-%s-%s", owner, repo, release.TagName))
	symlinkPath := filepath.Join(b.binDir, entry.BinaryName)

	if err := b.client.DownloadAsset(ctx, asset.DownloadURL, actualPath); err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}

	if err := os.Chmod(actualPath, 0755); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to make binary executable: %w", err)
	}

	tmpSymlink := symlinkPath + ".tmp"
	if err := os.Symlink(actualPath, tmpSymlink); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to create temporary symlink: %w", err)
	}
	if err := os.Rename(tmpSymlink, symlinkPath); err != nil {
		os.Remove(tmpSymlink)
		os.Remove(actualPath)
		return fmt.Errorf("failed to update symlink: %w", err)
	}

	// The old binary might still be running; removal failure is harmless.
	os.Remove(entry.InstallPath)

	oldVersion := entry.Version
	entry.Version = release.TagName
	entry.InstallPath = actualPath
	entry.AssetName = asset.Name
	entry.Size = asset.Size
	manifest[packageID] = entry

	if err := b.saveManifest(manifest); err != nil {
		return err
	}

	b.logger.Info("updated package",
		zap.String("package", packageID),
		zap.String("from", oldVersion),
		zap.String("to", release.TagName))
	return nil
}

// Remove deletes the symlink, the binary and the manifest entry.
func (b *Backend) Remove(ctx context.Context, packageID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	manifest, err := b.loadManifest()
	if err != nil {
		return err
	}
	entry, ok := manifest[packageID]
	if !ok {
		return fmt.Errorf("package %s is not installed", packageID)
	}

	delete(manifest, packageID)
	if err := b.saveManifest(manifest); err != nil {
		return err
	}

	symlinkPath := filepath.Join(b.binDir, entry.BinaryName)
	if err := os.Remove(symlinkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove symlink: %w", err)
	}
	if err := os.Remove(entry.InstallPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove binary: %w", err)
	}

	b.logger.Info("removed package", zap.String("package", packageID))
	return nil
}

// loadManifest reads the manifest file. Callers hold b.mu.
func (b *Backend) loadManifest() (map[string]manifestEntry, error) {
	data, err := os.ReadFile(b.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]manifestEntry), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest map[string]manifestEntry
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest == nil {
		manifest = make(map[string]manifestEntry)
	}
	return manifest, nil
}

// saveManifest writes the manifest file. Callers hold b.mu.
func (b *Backend) saveManifest(manifest map[string]manifestEntry) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.manifestPath), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(b.manifestPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func recordFromEntry(id string, entry manifestEntry) *backend.PackageRecord {
	name := id
	if _, repo, err := splitRepoPath(id); err == nil {
		name = repo
	}
	return &backend.PackageRecord{
		Backend:   backendID,
		ID:        id,
		Name:      name,
		Version:   entry.Version,
		Installed: true,
		Size:      entry.Size,
		Metadata: map[string]any{
			"binary": entry.BinaryName,
		},
	}
}

func sortedIDs(manifest map[string]manifestEntry) []string {
	ids := make([]string, 0, len(manifest))
	for id := range manifest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func splitRepoPath(packageID string) (owner, repo string, err error) {
	parts := strings.Split(packageID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository path: %s (expected format: owner/repo)", packageID)
	}
	return parts[0], parts[1], nil
}
