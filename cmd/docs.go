package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orbitctl/orbitctl/internal/docs"
	"github.com/orbitctl/orbitctl/internal/ui/markdown"
)

var (
	docsRaw   bool
	docsWidth int
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show the simulation protocol reference",
	Long: `Render the embedded protocol reference: the handshake shape, the
parameter wire format, and the channel socket contract.

Use --raw to print the untouched markdown, e.g. for piping into a pager
or another renderer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if docsRaw {
			fmt.Fprint(os.Stdout, docs.Protocol())
			return nil
		}

		r, err := markdown.New(docsWidth, cfg.UI.MarkdownStyle)
		if err != nil {
			return fmt.Errorf("creating markdown renderer: %w", err)
		}
		out, err := r.Render(docs.Protocol())
		if err != nil {
			return fmt.Errorf("rendering protocol docs: %w", err)
		}
		fmt.Fprint(os.Stdout, out)
		return nil
	},
}

func init() {
	docsCmd.Flags().BoolVar(&docsRaw, "raw", false, "Print the raw markdown without rendering")
	docsCmd.Flags().IntVar(&docsWidth, "width", 80, "Word-wrap width for rendered output")
	rootCmd.AddCommand(docsCmd)
}
