package selector

import (
	"strings"
	"testing"

	"github.com/dikkadev/hoard/pkg/backend"
)

func TestPackageItemMethods(t *testing.T) {
	item := PackageItem{record: &backend.PackageRecord{
		Backend:     "github",
		ID:          "test/repo",
		Name:        "repo",
		Version:     "v1.2.3",
		Description: "Test repository",
	}}

	t.Run("Title", func(t *testing.T) {
		if got := item.Title(); got != "repo (github)" {
			t.Errorf("Title() = %v, want %v", got, "repo (github)")
		}
	})

	t.Run("Title falls back to ID", func(t *testing.T) {
		noName := PackageItem{record: &backend.PackageRecord{Backend: "apt", ID: "vim"}}
		if got := noName.Title(); got != "vim (apt)" {
			t.Errorf("Title() = %v, want %v", got, "vim (apt)")
		}
	})

	t.Run("Description", func(t *testing.T) {
		expected := "v1.2.3 | Test repository"
		if got := item.Description(); got != expected {
			t.Errorf("Description() = %v, want %v", got, expected)
		}
	})

	t.Run("Description marks installed", func(t *testing.T) {
		installed := PackageItem{record: &backend.PackageRecord{
			Version:     "v1.0.0",
			Description: "something",
			Installed:   true,
		}}
		if got := installed.Description(); !strings.HasPrefix(got, "installed | v1.0.0 | ") {
			t.Errorf("Description() = %v, want installed prefix", got)
		}
	})

	t.Run("Description truncation", func(t *testing.T) {
		long := PackageItem{record: &backend.PackageRecord{
			Version:     "v1.0.0",
			Description: "This is a very long description that should be truncated because it exceeds the maximum length allowed for display in the package selector interface",
		}}
		desc := long.Description()
		if len(desc) > 100 {
			t.Errorf("Description() length = %v, want <= 100", len(desc))
		}
		if desc[len(desc)-3:] != "..." {
			t.Error("Long description should end with '...'")
		}
	})

	t.Run("FilterValue", func(t *testing.T) {
		if got := item.FilterValue(); got != "test/repo" {
			t.Errorf("FilterValue() = %v, want %v", got, "test/repo")
		}
	})
}

func TestSelectShortCircuits(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		if _, err := Select("Select a package", nil); err == nil {
			t.Error("Expected error for empty candidate list")
		}
	})

	t.Run("single candidate", func(t *testing.T) {
		rec := &backend.PackageRecord{Backend: "github", ID: "owner/tool"}
		got, err := Select("Select a package", []*backend.PackageRecord{rec})
		if err != nil {
			t.Fatalf("Select returned error: %v", err)
		}
		if got != rec {
			t.Errorf("Select returned %+v, want the single candidate", got)
		}
	})
}
