package registry

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dikkadev/hoard/pkg/backend"
	"github.com/dikkadev/hoard/pkg/backend/backendtest"
)

// fakeProber answers version probes from a fixed table. Commands absent
// from the table are treated as missing.
type fakeProber struct {
	versions map[string]string
}

func (f *fakeProber) CommandVersion(_ context.Context, command string) (string, error) {
	v, ok := f.versions[command]
	if !ok {
		return "", fmt.Errorf("command not on PATH: %s", command)
	}
	return v, nil
}

func TestRegistryRegistersAvailableBackends(t *testing.T) {
	prober := &fakeProber{versions: map[string]string{"apt-get": "2.7.14"}}

	apt := &backendtest.Plugin{
		BackendID: "apt",
		Name:      "System Packages",
		Available: true,
		Caps:      backend.NewCapabilities(backend.CapSearch, backend.CapInstall),
		Deps:      []backend.Dependency{{Command: "apt-get", Constraint: ">= 2.0"}},
	}

	r := New(context.Background(), []backend.Plugin{apt}, prober, nil)

	p, ok := r.Get("apt")
	if !ok {
		t.Fatal("Expected apt to be registered")
	}
	if p.ID() != "apt" {
		t.Errorf("Got plugin id %s, want apt", p.ID())
	}

	desc, ok := r.Describe("apt")
	if !ok {
		t.Fatal("Expected apt descriptor")
	}
	if !desc.Available || desc.Reason != "" {
		t.Errorf("Got descriptor %+v, want available with no reason", desc)
	}
}

func TestRegistryDependencyFailure(t *testing.T) {
	prober := &fakeProber{versions: map[string]string{"flatpak": "1.0.0"}}

	tests := []struct {
		name   string
		dep    backend.Dependency
		reason string
	}{
		{
			name:   "missing command",
			dep:    backend.Dependency{Command: "snapd"},
			reason: "not found",
		},
		{
			name:   "constraint unsatisfied",
			dep:    backend.Dependency{Command: "flatpak", Constraint: ">= 1.12"},
			reason: "does not satisfy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &backendtest.Plugin{
				BackendID: "candidate",
				Available: true,
				Caps:      backend.NewCapabilities(backend.CapSearch),
				Deps:      []backend.Dependency{tt.dep},
			}

			r := New(context.Background(), []backend.Plugin{p}, prober, nil)

			if _, ok := r.Get("candidate"); ok {
				t.Error("Expected candidate not to be registered")
			}
			desc, ok := r.Describe("candidate")
			if !ok {
				t.Fatal("Expected descriptor for unavailable candidate")
			}
			if desc.Available {
				t.Error("Expected candidate to be unavailable")
			}
			if !strings.Contains(desc.Reason, tt.reason) {
				t.Errorf("Got reason %q, want it to contain %q", desc.Reason, tt.reason)
			}
			// Dependency check happens before the availability probe
			if p.Calls("IsAvailable") != 0 {
				t.Error("Expected availability probe to be skipped after dependency failure")
			}
		})
	}
}

func TestRegistryOptionalDependency(t *testing.T) {
	prober := &fakeProber{versions: map[string]string{}}

	p := &backendtest.Plugin{
		BackendID: "appimage",
		Available: true,
		Caps:      backend.NewCapabilities(backend.CapSearch),
		Deps:      []backend.Dependency{{Command: "fuse", Optional: true}},
	}

	r := New(context.Background(), []backend.Plugin{p}, prober, nil)

	if _, ok := r.Get("appimage"); !ok {
		t.Error("Expected backend with only optional missing deps to register")
	}
}

func TestRegistryUnavailableProbe(t *testing.T) {
	p := &backendtest.Plugin{
		BackendID: "snap",
		Available: false,
		Caps:      backend.NewCapabilities(backend.CapSearch),
	}

	r := New(context.Background(), []backend.Plugin{p}, &fakeProber{}, nil)

	if _, ok := r.Get("snap"); ok {
		t.Error("Expected unavailable backend not to be registered")
	}
	desc, _ := r.Describe("snap")
	if desc.Reason == "" {
		t.Error("Expected a recorded reason for unavailability")
	}
}

func TestRegistryFailureIsolation(t *testing.T) {
	prober := &fakeProber{versions: map[string]string{"apt-get": "2.7.14"}}

	broken := &backendtest.Plugin{
		BackendID: "broken",
		Available: true,
		Deps:      []backend.Dependency{{Command: "missing-tool"}},
	}
	healthy := &backendtest.Plugin{
		BackendID: "apt",
		Available: true,
		Caps:      backend.NewCapabilities(backend.CapSearch),
		Deps:      []backend.Dependency{{Command: "apt-get"}},
	}

	r := New(context.Background(), []backend.Plugin{broken, healthy}, prober, nil)

	if _, ok := r.Get("apt"); !ok {
		t.Error("One candidate's failure must not prevent registration of others")
	}
	if ids := r.AvailableIDs(); len(ids) != 1 || ids[0] != "apt" {
		t.Errorf("Got available ids %v, want [apt]", ids)
	}
	if all := r.All(); len(all) != 2 {
		t.Errorf("Got %d probed candidates, want 2", len(all))
	}
}

func TestRegistryDuplicateID(t *testing.T) {
	first := &backendtest.Plugin{BackendID: "apt", Available: true}
	second := &backendtest.Plugin{BackendID: "apt", Available: true}

	r := New(context.Background(), []backend.Plugin{first, second}, &fakeProber{versions: map[string]string{}}, nil)

	if len(r.AvailableIDs()) != 1 {
		t.Errorf("Got %d registered backends, want the duplicate skipped", len(r.AvailableIDs()))
	}
}
