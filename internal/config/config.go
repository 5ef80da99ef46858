// Package config provides configuration types and defaults for orbitctl.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/orbitctl/orbitctl/internal/log"
	"github.com/orbitctl/orbitctl/internal/paths"
	"github.com/orbitctl/orbitctl/internal/simproc"
	"github.com/orbitctl/orbitctl/internal/surface"
	"github.com/orbitctl/orbitctl/internal/tracing"
)

// Config holds all configuration options for orbitctl.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Channel    ChannelConfig    `mapstructure:"channel"`
	Surface    SurfaceConfig    `mapstructure:"surface"`
	Params     ParamsConfig     `mapstructure:"params"`
	History    HistoryConfig    `mapstructure:"history"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	UI         UIConfig         `mapstructure:"ui"`
	Theme      ThemeConfig      `mapstructure:"theme"`
	Flags      map[string]bool  `mapstructure:"flags"`
}

// SimulationConfig holds simulation process settings.
type SimulationConfig struct {
	// ExecPath locates the simulation binary. Bare names are resolved next
	// to the orbitctl binary, then on PATH.
	ExecPath string `mapstructure:"exec_path"`

	// Args are extra arguments passed to the simulation on launch.
	Args []string `mapstructure:"args"`

	// WorkDir is the working directory for the simulation process.
	// Empty means inherit orbitctl's working directory.
	WorkDir string `mapstructure:"work_dir"`

	// Env holds extra KEY=VALUE pairs appended to the environment.
	Env []string `mapstructure:"env"`

	// HandshakeTimeout bounds the wait for the window-handle announcement.
	// Zero or negative disables the deadline.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	// WatchExecutable enables the rebuild watcher on the binary.
	WatchExecutable bool `mapstructure:"watch_executable"`

	// AutoRelaunch relaunches the simulation when the watcher fires instead
	// of prompting.
	AutoRelaunch bool `mapstructure:"auto_relaunch"`
}

// ChannelConfig holds parameter channel settings.
type ChannelConfig struct {
	// Path is the endpoint address the channel binds. The simulator connects
	// to its compiled-in default unless launched with an override.
	Path string `mapstructure:"path"`

	// WriteTimeout bounds a single snapshot transmission.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// SanitizeNewlines rewrites newlines inside parameter values before
	// transmission. Off by default: values are sent verbatim.
	SanitizeNewlines bool `mapstructure:"sanitize_newlines"`
}

// SurfaceConfig holds the fixed size for the embedded rendering surface.
type SurfaceConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ParamsConfig holds the values prefilled into the parameter inputs.
type ParamsConfig struct {
	OrbitalSpeed string `mapstructure:"orbital_speed"`
	Altitude     string `mapstructure:"altitude"`
}

// HistoryConfig holds run history persistence settings.
type HistoryConfig struct {
	// Enabled controls whether runs and deliveries are recorded.
	Enabled bool `mapstructure:"enabled"`

	// DBPath overrides the history database location.
	// Default: ~/.orbitctl/history.db
	DBPath string `mapstructure:"db_path"`

	// Transcripts controls whether simulation output is written to disk.
	Transcripts bool `mapstructure:"transcripts"`

	// TranscriptDir overrides the transcript directory.
	// Default: ~/.orbitctl/transcripts
	TranscriptDir string `mapstructure:"transcript_dir"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	// Default: ~/.orbitctl/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for the "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// 1.0 = all traces, 0.1 = 10% of traces
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ToTracing converts the config section into the tracing provider's config.
func (t TracingConfig) ToTracing() tracing.Config {
	return tracing.Config{
		Enabled:      t.Enabled,
		Exporter:     t.Exporter,
		FilePath:     t.FilePath,
		OTLPEndpoint: t.OTLPEndpoint,
		SampleRate:   t.SampleRate,
		ServiceName:  tracing.DefaultServiceName,
	}
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	ShowStatusBar bool   `mapstructure:"show_status_bar"`
	ShowTelemetry bool   `mapstructure:"show_telemetry"` // Telemetry pane with live log tail
	MarkdownStyle string `mapstructure:"markdown_style"` // "dark" (default) or "light"
	VimMode       bool   `mapstructure:"vim_mode"`       // j/k/g/G telemetry scrolling while the apply button has focus
}

// ThemeConfig overrides individual palette colors. Empty values keep the
// built-in colors.
type ThemeConfig struct {
	Muted   string `mapstructure:"muted"`
	Error   string `mapstructure:"error"`
	Success string `mapstructure:"success"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.orbitctl/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".orbitctl", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Simulation: SimulationConfig{
			HandshakeTimeout: simproc.DefaultHandshakeTimeout,
			WatchExecutable:  true,
			AutoRelaunch:     false,
		},
		Channel: ChannelConfig{
			Path:             paths.DefaultSocketPath,
			WriteTimeout:     1 * time.Second,
			SanitizeNewlines: false,
		},
		Surface: SurfaceConfig{
			Width:  surface.DefaultWidth,
			Height: surface.DefaultHeight,
		},
		Params: ParamsConfig{
			OrbitalSpeed: "2",
			Altitude:     "10",
		},
		History: HistoryConfig{
			Enabled:     true,
			Transcripts: true,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from the state dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		UI: UIConfig{
			ShowStatusBar: true,
			ShowTelemetry: true,
			MarkdownStyle: "dark",
			VimMode:       false,
		},
	}
}

// Validate checks the full configuration for errors.
func Validate(c Config) error {
	if err := ValidateSimulation(c.Simulation); err != nil {
		return err
	}
	if err := ValidateChannel(c.Channel); err != nil {
		return err
	}
	if err := ValidateSurface(c.Surface); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return nil
}

// ValidateSimulation checks simulation configuration for errors.
// ExecPath may be empty here; launching without one fails at launch time so
// that list and doc commands still work unconfigured.
func ValidateSimulation(sim SimulationConfig) error {
	if sim.WorkDir != "" && !filepath.IsAbs(sim.WorkDir) {
		return fmt.Errorf("simulation.work_dir must be an absolute path, got %q", sim.WorkDir)
	}
	for i, kv := range sim.Env {
		if !isEnvPair(kv) {
			return fmt.Errorf("simulation.env[%d] must be KEY=VALUE, got %q", i, kv)
		}
	}
	return nil
}

func isEnvPair(kv string) bool {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return i > 0
		}
	}
	return false
}

// ValidateChannel checks channel configuration for errors.
func ValidateChannel(ch ChannelConfig) error {
	if ch.Path == "" {
		return fmt.Errorf("channel.path is required")
	}
	if !filepath.IsAbs(ch.Path) {
		return fmt.Errorf("channel.path must be an absolute path, got %q", ch.Path)
	}
	if ch.WriteTimeout < 0 {
		return fmt.Errorf("channel.write_timeout must not be negative, got %v", ch.WriteTimeout)
	}
	return nil
}

// ValidateSurface checks surface configuration for errors.
// Zero dimensions are valid and fall back to the default size.
func ValidateSurface(s SurfaceConfig) error {
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("surface dimensions must not be negative, got %dx%d", s.Width, s.Height)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tr TracingConfig) error {
	if tr.SampleRate < 0.0 || tr.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tr.SampleRate)
	}

	if tr.Exporter != "" {
		switch tr.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tr.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tr.Enabled {
		if tr.Exporter == "file" && tr.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tr.Exporter == "otlp" && tr.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# orbitctl Configuration

# Simulation process settings
simulation:
  # Path to the simulation binary. Bare names are resolved next to the
  # orbitctl binary first, then on PATH.
  # exec_path: /usr/local/bin/orbitsim

  # Extra arguments passed to the simulation on launch
  # args: ["--fullscreen"]

  # Working directory for the simulation (default: inherit)
  # work_dir: /opt/orbitsim

  # Extra environment variables (KEY=VALUE)
  # env:
  #   - SDL_VIDEODRIVER=x11

  # How long to wait for the window-handle announcement on stdout
  handshake_timeout: 10s

  # Watch the binary for rebuilds and offer a relaunch
  watch_executable: true

  # Relaunch without prompting when the binary changes
  auto_relaunch: false

# Parameter channel settings
channel:
  # Endpoint address. The simulator connects to its compiled-in default,
  # so only change this when the simulator is launched with an override.
  path: /tmp/data_socket

  # Per-snapshot transmission timeout
  write_timeout: 1s

  # Rewrite newlines inside parameter values before transmission.
  # Off by default: values go out exactly as typed.
  sanitize_newlines: false

# Fixed size for the embedded rendering surface
surface:
  width: 600
  height: 600

# Values prefilled into the parameter inputs
params:
  orbital_speed: "2"
  altitude: "10"

# Run history persistence
history:
  enabled: true
  # db_path: ~/.orbitctl/history.db

  # Write simulation output transcripts to disk
  transcripts: true
  # transcript_dir: ~/.orbitctl/transcripts

# UI settings
ui:
  show_status_bar: true   # Show status bar at bottom
  show_telemetry: true    # Show the telemetry pane with the live log tail
  # markdown_style: dark  # Markdown rendering style: "dark" (default) or "light"
  vim_mode: false         # j/k/g/G telemetry scrolling while the apply button has focus

# Palette overrides (hex colors). Unset values keep the built-in palette.
# theme:
#   muted: "#4A4A4A"
#   error: "#E88388"
#   success: "#A8CC8C"

# Distributed tracing
# Enables end-to-end visibility into launch and delivery flows
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.orbitctl/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
