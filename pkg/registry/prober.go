package registry

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Prober checks whether a system command exists and which version it
// reports. Injected so tests can register backends without touching the
// host system.
type Prober interface {
	// CommandVersion returns the version reported by the command, or an
	// empty string when the command exists but its version cannot be
	// determined. An error means the command is missing.
	CommandVersion(ctx context.Context, command string) (string, error)
}

// versionPattern matches the first dotted version number in tool output.
var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+`)

type execProber struct{}

// NewExecProber returns a prober backed by the real system.
func NewExecProber() Prober {
	return execProber{}
}

// CommandVersion looks the command up on PATH and asks it for its version.
func (execProber) CommandVersion(ctx context.Context, command string) (string, error) {
	if _, err := exec.LookPath(command); err != nil {
		return "", fmt.Errorf("command not on PATH: %w", err)
	}

	// Most package tools answer --version; failure to parse is not an
	// error, the command is still present.
	out, err := exec.CommandContext(ctx, command, "--version").CombinedOutput()
	if err != nil {
		return "", nil
	}

	return versionPattern.FindString(strings.TrimSpace(string(out))), nil
}
