// ABOUTME: CLI command to show contact counts per bucket
// ABOUTME: Totals, source flag counts and assigned label counts
package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/contact-compass/internal/models"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show contact counts per bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			printStats(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStats(out io.Writer, st *sqlite.Stats) {
	fmt.Fprintf(out, "Contacts:     %d\n", st.Total)
	fmt.Fprintf(out, "Unclassified: %d\n", st.Unclassified)

	fmt.Fprintf(out, "\nSource flags:\n")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, b := range models.MainBuckets {
		fmt.Fprintf(w, "  %s\t%d\n", b.Label(), st.Flags[b])
	}
	_ = w.Flush()

	printLabelCounts(out, "Main buckets", st.ByMain)
	printLabelCounts(out, "Personality buckets", st.ByPersonality)
}

func printLabelCounts(out io.Writer, title string, counts []sqlite.LabelCount) {
	fmt.Fprintf(out, "\n%s:\n", title)
	if len(counts) == 0 {
		fmt.Fprintf(out, "  (none)\n")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, lc := range counts {
		fmt.Fprintf(w, "  %s\t%d\n", lc.Label, lc.Count)
	}
	_ = w.Flush()
}
