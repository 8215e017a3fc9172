package backend

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Dependency declares a system command a backend needs, with an optional
// version constraint. Optional dependencies never make a backend
// unavailable; they only degrade it.
type Dependency struct {
	Command    string // Command that must exist on PATH
	Constraint string // Version constraint, e.g. ">= 1.2", empty for any
	Optional   bool
}

// String returns a readable form of the dependency.
func (d Dependency) String() string {
	if d.Constraint == "" {
		return d.Command
	}
	return fmt.Sprintf("%s %s", d.Command, d.Constraint)
}

// CheckConstraint evaluates a version string against a constraint of the
// form "<op> <version>" where op is one of >= > <= < = !=. An empty
// constraint always passes.
func CheckConstraint(versionStr, constraint string) (bool, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return true, nil
	}

	parts := strings.Fields(constraint)
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid constraint: %q (expected format: op version)", constraint)
	}
	op, want := parts[0], parts[1]

	have, err := goversion.NewVersion(strings.TrimSpace(versionStr))
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", versionStr, err)
	}
	target, err := goversion.NewVersion(want)
	if err != nil {
		return false, fmt.Errorf("invalid constraint version %q: %w", want, err)
	}

	switch op {
	case ">=":
		return have.GreaterThanOrEqual(target), nil
	case ">":
		return have.GreaterThan(target), nil
	case "<=":
		return have.LessThanOrEqual(target), nil
	case "<":
		return have.LessThan(target), nil
	case "=", "==":
		return have.Equal(target), nil
	case "!=":
		return !have.Equal(target), nil
	default:
		return false, fmt.Errorf("unknown constraint operator: %q", op)
	}
}
