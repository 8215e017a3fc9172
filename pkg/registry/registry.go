// Package registry discovers backend plugins, probes their availability and
// dependency satisfaction, and exposes only the usable ones. A registry is
// built once at startup and is immutable afterwards; it is passed explicitly
// to the router, never held as global state.
package registry

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dikkadev/hoard/pkg/backend"
)

// Status is the registration state of a backend candidate.
type Status string

const (
	StatusDiscovered          Status = "discovered"
	StatusDependenciesChecked Status = "dependencies_checked"
	StatusAvailable           Status = "available"
	StatusUnavailable         Status = "unavailable"
)

// Registry holds the registered backends. One candidate's failure never
// prevents registration of the others.
type Registry struct {
	logger      *zap.Logger
	plugins     map[string]backend.Plugin
	descriptors map[string]backend.Descriptor
}

// New probes every candidate and registers the usable ones. A nil prober
// means real system probing.
func New(ctx context.Context, candidates []backend.Plugin, prober Prober, logger *zap.Logger) *Registry {
	if prober == nil {
		prober = NewExecProber()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		logger:      logger,
		plugins:     make(map[string]backend.Plugin),
		descriptors: make(map[string]backend.Descriptor),
	}

	for _, candidate := range candidates {
		r.register(ctx, candidate, prober)
	}

	return r
}

func (r *Registry) register(ctx context.Context, p backend.Plugin, prober Prober) {
	id := p.ID()
	log := r.logger.With(zap.String("backend", id))

	if id == "" {
		log.Warn("skipping backend with empty id")
		return
	}
	if _, dup := r.descriptors[id]; dup {
		log.Warn("skipping backend with duplicate id")
		return
	}

	desc := backend.Describe(p)
	log.Debug("backend discovered", zap.String("status", string(StatusDiscovered)))

	if reason := checkDependencies(ctx, p, prober, log); reason != "" {
		desc.Available = false
		desc.Reason = reason
		r.descriptors[id] = desc
		log.Warn("backend unavailable", zap.String("reason", reason))
		return
	}
	log.Debug("backend dependencies satisfied", zap.String("status", string(StatusDependenciesChecked)))

	if !p.IsAvailable(ctx) {
		desc.Available = false
		desc.Reason = "backend reports itself unavailable"
		r.descriptors[id] = desc
		log.Warn("backend unavailable", zap.String("reason", desc.Reason))
		return
	}

	desc.Available = true
	r.descriptors[id] = desc
	r.plugins[id] = p
	log.Info("backend registered",
		zap.String("status", string(StatusAvailable)),
		zap.Int("capabilities", len(desc.Capabilities)))
}

// checkDependencies evaluates the declared system dependencies against the
// running environment. Returns an empty string when all mandatory
// dependencies are satisfied, a reason otherwise.
func checkDependencies(ctx context.Context, p backend.Plugin, prober Prober, log *zap.Logger) string {
	for _, dep := range p.SystemDependencies() {
		version, err := prober.CommandVersion(ctx, dep.Command)
		if err != nil {
			if dep.Optional {
				log.Debug("optional dependency missing", zap.String("dependency", dep.String()))
				continue
			}
			return fmt.Sprintf("dependency %s not found: %v", dep.Command, err)
		}

		if dep.Constraint == "" {
			continue
		}
		if version == "" {
			if dep.Optional {
				continue
			}
			return fmt.Sprintf("dependency %s: version unknown, constraint %q not verifiable", dep.Command, dep.Constraint)
		}

		ok, err := backend.CheckConstraint(version, dep.Constraint)
		if err != nil {
			return fmt.Sprintf("dependency %s: %v", dep.Command, err)
		}
		if !ok {
			if dep.Optional {
				log.Debug("optional dependency constraint unsatisfied", zap.String("dependency", dep.String()))
				continue
			}
			return fmt.Sprintf("dependency %s: version %s does not satisfy %q", dep.Command, version, dep.Constraint)
		}
	}
	return ""
}

// Get returns an available plugin by backend id.
func (r *Registry) Get(backendID string) (backend.Plugin, bool) {
	p, ok := r.plugins[backendID]
	return p, ok
}

// Describe returns the descriptor for any probed candidate, available or
// not.
func (r *Registry) Describe(backendID string) (backend.Descriptor, bool) {
	d, ok := r.descriptors[backendID]
	return d, ok
}

// Available returns the descriptors of available backends, ordered by id.
func (r *Registry) Available() []backend.Descriptor {
	var out []backend.Descriptor
	for id := range r.plugins {
		out = append(out, r.descriptors[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableIDs returns the available backend ids, ordered.
func (r *Registry) AvailableIDs() []string {
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns every probed candidate's descriptor, ordered by id, including
// unavailable ones with their recorded reason.
func (r *Registry) All() []backend.Descriptor {
	out := make([]backend.Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
