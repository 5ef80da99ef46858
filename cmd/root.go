package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orbitctl/orbitctl/internal/app"
	"github.com/orbitctl/orbitctl/internal/cachemanager"
	"github.com/orbitctl/orbitctl/internal/config"
	"github.com/orbitctl/orbitctl/internal/controller"
	"github.com/orbitctl/orbitctl/internal/flags"
	"github.com/orbitctl/orbitctl/internal/history"
	"github.com/orbitctl/orbitctl/internal/keys"
	"github.com/orbitctl/orbitctl/internal/log"
	"github.com/orbitctl/orbitctl/internal/paramchan"
	"github.com/orbitctl/orbitctl/internal/paths"
	"github.com/orbitctl/orbitctl/internal/surface"
	"github.com/orbitctl/orbitctl/internal/tracing"
	"github.com/orbitctl/orbitctl/internal/ui/styles"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

// closeTimeout bounds controller and tracing shutdown after the TUI exits.
const closeTimeout = 5 * time.Second

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "orbitctl",
	Short: "An operator console for the orbit simulation",
	Long: `A terminal user interface that launches the orbit simulation, embeds its
rendering surface, and streams orbital speed and altitude over the parameter
channel while the simulation runs.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/orbitctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging and the log overlay (ctrl+x)")
	rootCmd.Flags().StringP("exec", "e", "",
		"path to the simulation binary")
	rootCmd.Flags().String("socket", "",
		"parameter channel endpoint path")

	// Bind flags to viper
	_ = viper.BindPFlag("simulation.exec_path", rootCmd.Flags().Lookup("exec"))
	_ = viper.BindPFlag("channel.path", rootCmd.Flags().Lookup("socket"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("simulation.handshake_timeout", defaults.Simulation.HandshakeTimeout)
	viper.SetDefault("simulation.watch_executable", defaults.Simulation.WatchExecutable)
	viper.SetDefault("simulation.auto_relaunch", defaults.Simulation.AutoRelaunch)
	viper.SetDefault("channel.path", defaults.Channel.Path)
	viper.SetDefault("channel.write_timeout", defaults.Channel.WriteTimeout)
	viper.SetDefault("channel.sanitize_newlines", defaults.Channel.SanitizeNewlines)
	viper.SetDefault("surface.width", defaults.Surface.Width)
	viper.SetDefault("surface.height", defaults.Surface.Height)
	viper.SetDefault("params.orbital_speed", defaults.Params.OrbitalSpeed)
	viper.SetDefault("params.altitude", defaults.Params.Altitude)
	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("history.transcripts", defaults.History.Transcripts)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("ui.show_status_bar", defaults.UI.ShowStatusBar)
	viper.SetDefault("ui.show_telemetry", defaults.UI.ShowTelemetry)
	viper.SetDefault("ui.markdown_style", defaults.UI.MarkdownStyle)
	viper.SetDefault("ui.vim_mode", defaults.UI.VimMode)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .orbitctl/config.yaml (current directory)
		// 2. ~/.config/orbitctl/config.yaml (user config)
		if _, err := os.Stat(".orbitctl/config.yaml"); err == nil {
			viper.SetConfigFile(".orbitctl/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "orbitctl"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .orbitctl/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".orbitctl/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runApp(cmd *cobra.Command, args []string) error {
	// Initialize logging if debug mode enabled (via flag or env var)
	debug := os.Getenv("ORBITCTL_DEBUG") != "" || debugFlag
	if debug {
		logPath := os.Getenv("ORBITCTL_LOG")
		if logPath == "" {
			logPath = "debug.log"
		}

		cleanup, err := log.InitWithTeaLog(logPath, "orbitctl")
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()

		log.Info(log.CatConfig, "orbitctl starting", "debug", true, "logPath", logPath)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	keys.ApplyConfig(cfg.UI.VimMode)
	styles.ApplyTheme(cfg.Theme.Muted, cfg.Theme.Error, cfg.Theme.Success)

	// Feature flags come from config, with ORBITCTL_FLAG_* env overrides.
	flagReg := flags.New(cfg.Flags)
	var sanitizer paramchan.Sanitizer
	if flagReg.Enabled(flags.FlagChannelEscape) || cfg.Channel.SanitizeNewlines {
		sanitizer = paramchan.StripNewlines
	}

	tracingCfg := cfg.Tracing.ToTracing()
	if tracingCfg.FilePath == "" {
		tracingCfg.FilePath = config.DefaultTracesFilePath()
	}
	tp, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	var repo *history.Repository
	if cfg.History.Enabled {
		dbPath, err := paths.HistoryDBPath(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("resolving history database path: %w", err)
		}
		store, err := history.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer func() { _ = store.Close() }()
		repo = store.Repository()
	}

	var transcriptDir string
	if cfg.History.Transcripts {
		transcriptDir, err = paths.TranscriptDir(cfg.History.TranscriptDir)
		if err != nil {
			return fmt.Errorf("resolving transcript directory: %w", err)
		}
	}

	execPath, err := paths.ResolveSimExecutable(cfg.Simulation.ExecPath)
	if err != nil {
		return fmt.Errorf("resolving simulation executable: %w", err)
	}
	// The watcher and status bar want the resolved path, not the bare name.
	cfg.Simulation.ExecPath = execPath

	ctrl, err := controller.New(controller.Config{
		ChannelPath:      cfg.Channel.Path,
		ExecPath:         execPath,
		Args:             cfg.Simulation.Args,
		WorkDir:          cfg.Simulation.WorkDir,
		Env:              cfg.Simulation.Env,
		HandshakeTimeout: cfg.Simulation.HandshakeTimeout,
		SurfaceSize:      surface.Size{Width: cfg.Surface.Width, Height: cfg.Surface.Height},
		WriteTimeout:     cfg.Channel.WriteTimeout,
		Sanitizer:        sanitizer,
		History:          repo,
		Tracing:          tp,
		TranscriptDir:    transcriptDir,
		Deduper:          cachemanager.NewOutputDeduper(0),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	// Channel, launch, and embed failures are fatal: abort before the TUI
	// starts so the error lands on stderr instead of a dying alt screen.
	if err := ctrl.Initialize(cmd.Context()); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = ctrl.Close(closeCtx)
		return fmt.Errorf("starting simulation: %w", err)
	}

	// Store the config file path for saving parameter defaults
	configFilePath := viper.ConfigFileUsed()
	if configFilePath == "" {
		// No config file was loaded, default to .orbitctl/config.yaml
		configFilePath = ".orbitctl/config.yaml"
	}

	model := app.NewWithConfig(ctrl, cfg, repo, configFilePath, debug)
	p := tea.NewProgram(
		&model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()

	// Clean up watcher and subscription resources
	if closeErr := model.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	// Stop the simulation and release the channel endpoint
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if closeErr := ctrl.Close(closeCtx); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
