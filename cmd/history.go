package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/orbitctl/orbitctl/internal/history"
	"github.com/orbitctl/orbitctl/internal/paths"
	"github.com/orbitctl/orbitctl/internal/presentation"
	"github.com/orbitctl/orbitctl/internal/ui/styles"
)

var (
	histLimit int
	histJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded simulation runs",
	Long: `Inspect the run history database: every simulation launch and every
parameter delivery attempt orbitctl recorded.

Recording is controlled by the history.enabled config setting; these
commands read the database regardless so past runs stay inspectable.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Long: `List recorded simulation runs, newest first.

Shows one row per launch with its GUID, terminal status, and timing.
Use --json for machine-readable output and --limit to cap the row count.

Examples:
  # List the ten most recent runs
  orbitctl history list --limit 10

  # Full details as JSON
  orbitctl history list --json

  # Parse specific fields with jq
  orbitctl history list --json | jq '.[].guid'
  orbitctl history list --json | jq '.[] | select(.status == "failed")'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		runs, err := store.Repository().ListRuns(histLimit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		if histJSON {
			formatter := presentation.NewFormatter(os.Stdout)
			return formatter.FormatRuns(presentation.FromRuns(runs))
		}

		printRuns(os.Stdout, runs)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <guid>",
	Short: "Show one run with its delivery attempts",
	Long: `Show one recorded run as JSON, including every parameter delivery
attempt and aggregate delivery counts.

The GUID must match a run exactly; find it with 'orbitctl history list'.

Examples:
  orbitctl history show 6a1f0c52-...
  orbitctl history show <guid> | jq '.stats'
  orbitctl history show <guid> | jq '.applies[] | select(.delivered | not)'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		repo := store.Repository()
		run, err := repo.FindRunByGUID(args[0])
		if err != nil {
			return err
		}
		applies, err := repo.ListApplies(run.ID)
		if err != nil {
			return fmt.Errorf("listing applies: %w", err)
		}
		stats, err := repo.ApplyStats(run.ID)
		if err != nil {
			return fmt.Errorf("computing apply stats: %w", err)
		}

		formatter := presentation.NewFormatter(os.Stdout)
		return formatter.FormatRunDetail(presentation.NewRunDetail(run, applies, stats))
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff <guid-a> <guid-b>",
	Short: "Compare two recorded runs",
	Long: `Compare two recorded runs: executable, channel endpoint, terminal
status, and the last parameters each simulation actually received.

Differences are colored: text only in the first run is red, text only in
the second is green.

Examples:
  orbitctl history diff 6a1f0c52-... 9b40e7d1-...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		repo := store.Repository()
		snapA, err := runSnapshot(repo, args[0])
		if err != nil {
			return err
		}
		snapB, err := runSnapshot(repo, args[1])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "--- %s\n+++ %s\n", args[0], args[1])
		fmt.Fprint(os.Stdout, renderSnapshotDiff(snapA, snapB))
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&histLimit, "limit", "n", 0, "Maximum runs to list (0 = all)")
	historyListCmd.Flags().BoolVar(&histJSON, "json", false, "Emit JSON instead of the text listing")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDiffCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the store used by the history subcommands. The
// history.enabled setting gates recording, not reading.
func openHistory() (*history.Store, error) {
	dbPath, err := paths.HistoryDBPath(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("resolving history database path: %w", err)
	}
	store, err := history.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	return store, nil
}

const runTimeLayout = "2006-01-02 15:04:05"

// printRuns writes the plain-text listing. JSON output goes through the
// presentation formatter instead.
func printRuns(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-9s  %-6s  %-19s  %-19s  %s\n",
		"GUID", "STATUS", "PID", "STARTED", "ENDED", "EXECUTABLE")
	for _, run := range runs {
		ended := "-"
		if run.EndedAt != nil {
			ended = run.EndedAt.Format(runTimeLayout)
		}
		fmt.Fprintf(w, "%-36s  %-9s  %-6d  %-19s  %-19s  %s\n",
			run.GUID,
			run.Status,
			run.PID,
			run.StartedAt.Format(runTimeLayout),
			ended,
			filepath.Base(run.ExecPath),
		)
	}
}

// runSnapshot renders the comparable view of a run: where it ran, how it
// ended, and the last parameters that were delivered to it.
func runSnapshot(repo *history.Repository, guid string) (string, error) {
	run, err := repo.FindRunByGUID(guid)
	if err != nil {
		return "", err
	}
	applies, err := repo.ListApplies(run.ID)
	if err != nil {
		return "", fmt.Errorf("listing applies for %s: %w", guid, err)
	}

	speed, altitude := "-", "-"
	for i := len(applies) - 1; i >= 0; i-- {
		if applies[i].Delivered {
			speed = applies[i].OrbitalSpeed
			altitude = applies[i].Altitude
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "executable: %s\n", run.ExecPath)
	fmt.Fprintf(&b, "channel: %s\n", run.ChannelPath)
	fmt.Fprintf(&b, "status: %s\n", run.Status)
	fmt.Fprintf(&b, "orbital_speed: %s\n", speed)
	fmt.Fprintf(&b, "altitude: %s\n", altitude)
	fmt.Fprintf(&b, "applies: %d\n", len(applies))
	return b.String(), nil
}

// renderSnapshotDiff colors the differences between two snapshot texts:
// deletions from the first run in red, insertions from the second in green.
func renderSnapshotDiff(oldText, newText string) string {
	deleteStyle := lipgloss.NewStyle().Foreground(styles.StatusErrorColor)
	insertStyle := lipgloss.NewStyle().Foreground(styles.StatusSuccessColor)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			b.WriteString(deleteStyle.Render(d.Text))
		case diffmatchpatch.DiffInsert:
			b.WriteString(insertStyle.Render(d.Text))
		}
	}
	return b.String()
}
