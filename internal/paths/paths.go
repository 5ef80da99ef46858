// Package paths provides path resolution utilities.
package paths

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultSocketPath is the simulator's compiled-in parameter channel
// address. The channel must bind here unless the operator overrides it,
// or the simulator will never find the endpoint.
const DefaultSocketPath = "/tmp/data_socket"

// stateDirName is the per-user directory holding the history database and
// run transcripts.
const stateDirName = ".orbitctl"

// ResolveSimExecutable resolves the simulation executable from user input.
//
// Resolution order:
//   - absolute paths (or paths containing a separator) are used as-is,
//     after confirming the file exists
//   - bare names are looked up next to the orbitctl binary itself, which is
//     how the simulator ships alongside the controller
//   - finally $PATH is consulted
func ResolveSimExecutable(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("simulation executable not configured")
	}

	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", fmt.Errorf("failed to resolve executable path %q: %w", name, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("simulation executable %q: %w", abs, err)
		}
		return abs, nil
	}

	// Bare name: prefer a sibling of the controller binary.
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}

	found, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("simulation executable %q not found beside orbitctl or on PATH: %w", name, err)
	}
	return found, nil
}

// StateDir returns the per-user state directory (~/.orbitctl), creating it
// if needed.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, stateDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create state directory %q: %w", dir, err)
	}
	return dir, nil
}

// HistoryDBPath returns the default history database location, honoring an
// explicit override.
func HistoryDBPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// TranscriptDir returns the directory for run transcripts, honoring an
// explicit override. The directory is created if needed.
func TranscriptDir(override string) (string, error) {
	dir := override
	if dir == "" {
		state, err := StateDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(state, "transcripts")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create transcript directory %q: %w", dir, err)
	}
	return dir, nil
}
