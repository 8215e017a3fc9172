package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dikkadev/hoard/pkg/backend"
	"github.com/dikkadev/hoard/pkg/backends/ghreleases"
	"github.com/dikkadev/hoard/pkg/cache"
	"github.com/dikkadev/hoard/pkg/config"
	"github.com/dikkadev/hoard/pkg/github"
	"github.com/dikkadev/hoard/pkg/logging"
	"github.com/dikkadev/hoard/pkg/manager"
	"github.com/dikkadev/hoard/pkg/registry"
	"github.com/dikkadev/hoard/pkg/selector"
	"github.com/dikkadev/hoard/pkg/store"
)

const usage = `Hoard: cached multi-backend package manager

Usage:
  hoard [command] [flags] [arguments]

Commands:
  search      Search for packages across backends
  install     Install a package
  remove      Remove an installed package
  update      Update an installed package
  list        List installed packages
  categories  Browse packages by category
  backends    Show registered backends and their capabilities
  refresh     Invalidate cached package metadata
  configure   Configure hoard settings

Common Flags:
  -backend    Target a single backend instead of all of them
  -force      Bypass cached metadata even when fresh

Use "hoard [command] --help" for more information about a command.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		fmt.Println(usage)
		return nil
	}

	cmd := args[0]
	cmdArgs := args[1:]

	// Load configuration (but don't require the store for help)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Handle commands that don't need the store
	switch cmd {
	case "help":
		fmt.Println(usage)
		return nil
	case "configure":
		return handleConfigure(cfg)
	}

	// Set up command flags
	searchCmd := flag.NewFlagSet("search", flag.ExitOnError)
	searchCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hoard search [flags] query

Search for packages. Cached metadata is served when fresh; stale backends
are refreshed first and flagged when the refresh fails.

Flags:
  -backend    Search a single backend
  -force      Refresh cached metadata before searching
  -limit      Maximum number of results per backend
  -offset     Skip this many results per backend
  -help       Show this help message
`)
	}
	searchBackend := searchCmd.String("backend", "", "Search a single backend")
	searchForce := searchCmd.Bool("force", false, "Refresh cached metadata before searching")
	searchLimit := searchCmd.Int("limit", 0, "Maximum number of results per backend")
	searchOffset := searchCmd.Int("offset", 0, "Skip this many results per backend")
	searchHelp := searchCmd.Bool("help", false, "Show help for search command")

	installCmd := flag.NewFlagSet("install", flag.ExitOnError)
	installCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hoard install [flags] package

Install a package. When the argument is not an exact package ID the
matching candidates are offered in an interactive picker.

Flags:
  -backend          Install through a specific backend
  -non-interactive  Fail instead of showing the interactive picker
  -help             Show this help message
`)
	}
	installBackend := installCmd.String("backend", "", "Install through a specific backend")
	installNonInteractive := installCmd.Bool("non-interactive", false, "Fail instead of showing the interactive picker")
	installHelp := installCmd.Bool("help", false, "Show help for install command")

	removeCmd := flag.NewFlagSet("remove", flag.ExitOnError)
	removeCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hoard remove [flags] package

Remove an installed package.

Flags:
  -backend    Remove through a specific backend
  -help       Show this help message
`)
	}
	removeBackend := removeCmd.String("backend", "", "Remove through a specific backend")
	removeHelp := removeCmd.Bool("help", false, "Show help for remove command")

	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	updateCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hoard update [flags] [package]

Update an installed package, or all installed packages when no package
is given.

Flags:
  -backend    Update through a specific backend
  -help       Show this help message
`)
	}
	updateBackend := updateCmd.String("backend", "", "Update through a specific backend")
	updateHelp := updateCmd.Bool("help", false, "Show help for update command")

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hoard list [flags]

List installed packages across backends.

Flags:
  -backend    List a single backend
  -force      Refresh cached metadata before listing
  -limit      Maximum number of results per backend
  -offset     Skip this many results per backend
  -help       Show this help message
`)
	}
	listBackend := listCmd.String("backend", "", "List a single backend")
	listForce := listCmd.Bool("force", false, "Refresh cached metadata before listing")
	listLimit := listCmd.Int("limit", 0, "Maximum number of results per backend")
	listOffset := listCmd.Int("offset", 0, "Skip this many results per backend")
	listHelp := listCmd.Bool("help", false, "Show help for list command")

	categoriesCmd := flag.NewFlagSet("categories", flag.ExitOnError)
	categoriesCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hoard categories [flags] [category]

Without a category, list the categories a backend offers. With one, list
the packages in that category.

Flags:
  -backend    Target a specific backend (required without a category)
  -limit      Maximum number of results per backend
  -offset     Skip this many results per backend
  -help       Show this help message
`)
	}
	categoriesBackend := categoriesCmd.String("backend", "", "Target a specific backend")
	categoriesLimit := categoriesCmd.Int("limit", 0, "Maximum number of results per backend")
	categoriesOffset := categoriesCmd.Int("offset", 0, "Skip this many results per backend")
	categoriesHelp := categoriesCmd.Bool("help", false, "Show help for categories command")

	refreshCmd := flag.NewFlagSet("refresh", flag.ExitOnError)
	refreshCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: hoard refresh [flags]

Invalidate cached package metadata so the next read fetches fresh data.

Flags:
  -backend    Refresh a single backend instead of all of them
  -help       Show this help message
`)
	}
	refreshBackend := refreshCmd.String("backend", "", "Refresh a single backend")
	refreshHelp := refreshCmd.Bool("help", false, "Show help for refresh command")

	backendsCmd := flag.NewFlagSet("backends", flag.ExitOnError)
	backendsHelp := backendsCmd.Bool("help", false, "Show help for backends command")

	// Parse command specific flags and handle help
	switch cmd {
	case "search":
		searchCmd.Parse(cmdArgs)
		if *searchHelp {
			searchCmd.Usage()
			return nil
		}
	case "install":
		installCmd.Parse(cmdArgs)
		if *installHelp {
			installCmd.Usage()
			return nil
		}
	case "remove":
		removeCmd.Parse(cmdArgs)
		if *removeHelp {
			removeCmd.Usage()
			return nil
		}
	case "update":
		updateCmd.Parse(cmdArgs)
		if *updateHelp {
			updateCmd.Usage()
			return nil
		}
	case "list":
		listCmd.Parse(cmdArgs)
		if *listHelp {
			listCmd.Usage()
			return nil
		}
	case "categories":
		categoriesCmd.Parse(cmdArgs)
		if *categoriesHelp {
			categoriesCmd.Usage()
			return nil
		}
	case "refresh":
		refreshCmd.Parse(cmdArgs)
		if *refreshHelp {
			refreshCmd.Usage()
			return nil
		}
	case "backends":
		backendsCmd.Parse(cmdArgs)
		if *backendsHelp {
			fmt.Fprintln(os.Stderr, "Usage: hoard backends\n\nShow registered backends and their capabilities.")
			return nil
		}
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}

	// Ensure hoard directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	logger, err := logging.New(logging.Config{
		Level:       level,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	// Initialize the cache store
	dirs := cfg.GetDirectories()
	dbPath := filepath.Join(dirs.DB, "hoard.db")
	st, err := store.NewLibSQL("file:" + dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Register the backends and probe their availability
	ghBackend := ghreleases.New(ghreleases.Options{
		Client:       github.NewClient(cfg.GitHubToken),
		BinDir:       dirs.Bin,
		BinActualDir: dirs.BinActual,
		ManifestPath: filepath.Join(dirs.DB, "ghreleases.json"),
		Logger:       logger,
	})
	reg := registry.New(ctx, []backend.Plugin{ghBackend}, nil, logger)

	caches := cache.NewManager(st, reg.AvailableIDs(), cache.TTLConfig{
		Default:    cfg.DefaultTTL(),
		PerBackend: cfg.BackendTTLs(),
	}, logger)

	mgr := manager.New(reg, caches, cfg.OperationTimeout(), logger)

	defaultBackend := func(flagValue string) string {
		if flagValue != "" {
			return flagValue
		}
		return cfg.DefaultBackend
	}

	// Execute command
	switch cmd {
	case "search":
		opts := manager.Options{
			Backend:      defaultBackend(*searchBackend),
			ForceRefresh: *searchForce,
			Limit:        *searchLimit,
			Offset:       *searchOffset,
		}
		return handleSearch(ctx, mgr, searchCmd.Args(), opts)

	case "install":
		return handleInstall(ctx, mgr, installCmd.Args(), resolveBackend(defaultBackend(*installBackend)), *installNonInteractive)

	case "remove":
		return handleRemove(ctx, mgr, removeCmd.Args(), resolveBackend(defaultBackend(*removeBackend)))

	case "update":
		return handleUpdate(ctx, mgr, updateCmd.Args(), resolveBackend(defaultBackend(*updateBackend)))

	case "list":
		opts := manager.Options{
			Backend:      defaultBackend(*listBackend),
			ForceRefresh: *listForce,
			Limit:        *listLimit,
			Offset:       *listOffset,
		}
		return handleList(ctx, mgr, opts)

	case "categories":
		opts := manager.Options{
			Backend: defaultBackend(*categoriesBackend),
			Limit:   *categoriesLimit,
			Offset:  *categoriesOffset,
		}
		return handleCategories(ctx, mgr, categoriesCmd.Args(), opts)

	case "refresh":
		return handleRefresh(ctx, mgr, defaultBackend(*refreshBackend))

	case "backends":
		return handleBackends(mgr)
	}

	return nil
}

// resolveBackend falls back to the single built-in backend when nothing is
// configured. Write operations always need a concrete target.
func resolveBackend(backendID string) string {
	if backendID != "" {
		return backendID
	}
	return "github"
}

func handleSearch(ctx context.Context, mgr *manager.Manager, args []string, opts manager.Options) error {
	if len(args) < 1 {
		return fmt.Errorf("search query required")
	}

	result, err := mgr.Search(ctx, strings.Join(args, " "), opts)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func handleInstall(ctx context.Context, mgr *manager.Manager, args []string, backendID string, nonInteractive bool) error {
	if len(args) < 1 {
		return fmt.Errorf("package name required")
	}
	query := args[0]

	// An exact owner/repo style ID installs directly
	if strings.Contains(query, "/") {
		return mgr.Install(ctx, backendID, query)
	}

	if nonInteractive {
		return fmt.Errorf("%s is not an exact package ID; rerun without -non-interactive to pick from matches", query)
	}

	result, err := mgr.Search(ctx, query, manager.Options{Backend: backendID})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		return fmt.Errorf("no packages found matching '%s'", query)
	}

	selected, err := selector.Select("Select a package to install", result.Records)
	if err != nil {
		return err
	}
	return mgr.Install(ctx, selected.Backend, selected.ID)
}

func handleRemove(ctx context.Context, mgr *manager.Manager, args []string, backendID string) error {
	if len(args) < 1 {
		return fmt.Errorf("package name required")
	}
	if err := mgr.Remove(ctx, backendID, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func handleUpdate(ctx context.Context, mgr *manager.Manager, args []string, backendID string) error {
	if len(args) >= 1 {
		if err := mgr.Update(ctx, backendID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", args[0])
		return nil
	}

	// No package named: update everything installed through this backend
	result, err := mgr.Installed(ctx, manager.Options{Backend: backendID})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		fmt.Println("No packages installed")
		return nil
	}

	for _, rec := range result.Records {
		if err := mgr.Update(ctx, rec.Backend, rec.ID); err != nil {
			fmt.Printf("Failed to update %s: %v\n", rec.ID, err)
		}
	}
	return nil
}

func handleList(ctx context.Context, mgr *manager.Manager, opts manager.Options) error {
	result, err := mgr.Installed(ctx, opts)
	if err != nil {
		return err
	}

	if len(result.Records) == 0 {
		fmt.Println("No packages installed")
		printFailures(result)
		return nil
	}

	fmt.Println("Installed packages:")
	printResult(result)
	return nil
}

func handleCategories(ctx context.Context, mgr *manager.Manager, args []string, opts manager.Options) error {
	if len(args) >= 1 {
		result, err := mgr.ByCategory(ctx, args[0], opts)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	}

	if opts.Backend == "" {
		return fmt.Errorf("a backend is required to list categories (use -backend)")
	}

	counts, stale, err := mgr.Categories(ctx, opts.Backend)
	if err != nil {
		return err
	}
	if stale {
		fmt.Fprintf(os.Stderr, "Warning: backend %s could not be refreshed; categories may be stale\n", opts.Backend)
	}
	if len(counts) == 0 {
		fmt.Println("No categories")
		return nil
	}
	for _, cc := range counts {
		fmt.Printf("  %s (%d)\n", cc.Category, cc.Count)
	}
	return nil
}

func handleRefresh(ctx context.Context, mgr *manager.Manager, backendID string) error {
	if backendID != "" {
		if err := mgr.Refresh(ctx, backendID); err != nil {
			return err
		}
		fmt.Printf("Cache for %s marked stale\n", backendID)
		return nil
	}

	if err := mgr.RefreshAll(ctx); err != nil {
		return err
	}
	fmt.Println("All caches marked stale")
	return nil
}

func handleBackends(mgr *manager.Manager) error {
	descriptors := mgr.Backends()
	if len(descriptors) == 0 {
		fmt.Println("No backends registered")
		return nil
	}

	for _, desc := range descriptors {
		status := "available"
		if !desc.Available {
			status = "unavailable"
			if desc.Reason != "" {
				status += " (" + desc.Reason + ")"
			}
		}
		caps := make([]string, 0, len(desc.Capabilities))
		for _, c := range desc.Capabilities.List() {
			caps = append(caps, string(c))
		}
		fmt.Printf("  %s (%s) %s - %s\n", desc.ID, desc.DisplayName, status, strings.Join(caps, ", "))
	}
	return nil
}

func printResult(result *manager.Result) {
	for _, rec := range result.Records {
		line := "  " + rec.ID
		if rec.Version != "" {
			line += "@" + rec.Version
		}
		if rec.Installed {
			line += " [installed]"
		}
		if result.Stale[rec.Backend] {
			line += " [stale]"
		}
		if rec.Description != "" {
			line += " - " + rec.Description
		}
		fmt.Println(line)
	}
	printFailures(result)
}

func printFailures(result *manager.Result) {
	for backendID, err := range result.Failures {
		msg := err.Error()
		if errors.Is(err, manager.ErrBackendTimeout) {
			msg = "timed out"
		}
		fmt.Fprintf(os.Stderr, "Warning: backend %s failed: %s\n", backendID, msg)
	}
}

func handleConfigure(cfg *config.Config) error {
	// Get available operations
	ops := config.GetOperations()

	// Create choices for gum choose
	var choices []string
	for _, op := range ops {
		choices = append(choices, fmt.Sprintf("%s - %s", op.Name, op.Description))
	}

	// Use gum choose to select operation
	args := append([]string{"choose"}, choices...)
	cmd := exec.Command("gum", args...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 130 {
			// User pressed Ctrl+C or similar
			return nil
		}
		return fmt.Errorf("failed to get choice: %w", err)
	}

	// Parse selected operation
	selected := strings.TrimSpace(string(output))
	if selected == "" {
		return nil
	}

	// Find and execute selected operation
	selectedName := strings.Split(selected, " - ")[0]
	for _, op := range ops {
		if op.Name == selectedName {
			return op.Handler(cfg)
		}
	}

	return fmt.Errorf("unknown operation: %s", selectedName)
}
