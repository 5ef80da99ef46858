// Package flags provides feature flag support for protocol experiments.
// Flags are read-only after initialization and unknown flags default to off.
package flags

import (
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/orbitctl/orbitctl/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagChannelEscape enables the wire-format hardening experiment: newline
	// characters in operator input are stripped before serialization so a
	// pasted multi-line value cannot smear message boundaries. Off by
	// default; the stock wire format transmits operator text verbatim.
	FlagChannelEscape = "channel-escape"
)

// envPrefix is prepended to the upper-cased, underscored flag name to form
// its environment override, e.g. ORBITCTL_FLAG_CHANNEL_ESCAPE=1.
const envPrefix = "ORBITCTL_FLAG_"

// Registry holds feature flag state loaded from configuration.
// Flags are read-only after initialization.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map, then applies environment
// overrides. If flags is nil, an empty registry is created (all flags off).
func New(flags map[string]bool) *Registry {
	if flags == nil {
		flags = make(map[string]bool)
	}
	r := &Registry{flags: flags}
	r.applyEnvOverrides()
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "flags", r.All())
	return r
}

// applyEnvOverrides lets ORBITCTL_FLAG_* env vars force a flag on or off,
// which is how experiments are toggled without editing the config file.
func (r *Registry) applyEnvOverrides() {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		name := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, envPrefix), "_", "-"))
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			log.Warn(log.CatConfig, "Ignoring malformed flag override", "env", key, "value", value)
			continue
		}
		r.flags[name] = enabled
	}
}

// Enabled returns true if the named flag is enabled.
// Unknown flags and nil registries report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of all flags (for debugging/logging).
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}
