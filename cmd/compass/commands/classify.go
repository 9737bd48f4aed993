// ABOUTME: CLI commands for classifying tags and categorizing stored contacts
// ABOUTME: classify is a dry run on a tag list; categorize writes to the store
package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/contact-compass/internal/core"
)

// NewClassifyCmd creates the classify command
func NewClassifyCmd() *cobra.Command {
	var (
		hint    string
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "classify TAG...",
		Short: "Classify a tag list without touching the store",
		Long: `Run the bucket classifier on a list of tags and print the main and
personality bucket it picks.

With --hint the main bucket is taken as given (a label such as "Health"
or a code such as "health") and only the personality bucket is scored.

Examples:
  compass classify yoga "weight loss"
  compass classify --explain crypto invest
  compass classify --hint survivalist homesteading`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			classifier, err := cfg.Classifier()
			if err != nil {
				return fmt.Errorf("loading classifier: %w", err)
			}

			c := classifier.Explain(args, hint)
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			printClassification(cmd.OutOrStdout(), c, explain)
			return nil
		},
	}

	cmd.Flags().StringVar(&hint, "hint", "", "Main bucket to use instead of scoring")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show per-bucket scores")

	return cmd
}

func printClassification(out io.Writer, c core.Classification, explain bool) {
	fmt.Fprintf(out, "Main bucket:        %s\n", c.Main)
	fmt.Fprintf(out, "Personality bucket: %s\n", c.Personality)
	if !explain {
		return
	}

	for _, section := range []struct {
		title  string
		scores []core.BucketScore
	}{
		{"Main scores", c.MainScores},
		{"Personality scores", c.PersonalityScores},
	} {
		fmt.Fprintf(out, "\n%s:\n", section.title)
		if len(section.scores) == 0 {
			fmt.Fprintf(out, "  (none)\n")
			continue
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, s := range section.scores {
			fmt.Fprintf(w, "  %s\t%g\n", s.Bucket, s.Score)
		}
		_ = w.Flush()
	}
}

// NewCategorizeCmd creates the categorize command group
func NewCategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Classify stored contacts",
		Long: `Assign main and personality buckets to stored contacts.

Each contact is saved as soon as it is classified, so an interrupted run
keeps the work it already did. Contacts whose buckets would not change
are left alone.`,
	}

	cmd.AddCommand(newCategorizeRunCmd("unclassified",
		"Classify contacts that have no main bucket yet",
		func(c *core.Categorizer, cmd *cobra.Command, args []string) (core.RunResult, error) {
			return c.ClassifyUnclassified(cmd.Context())
		}))
	cmd.AddCommand(newCategorizeRunCmd("personality",
		"Fill in missing personality buckets, keeping each contact's main bucket",
		func(c *core.Categorizer, cmd *cobra.Command, args []string) (core.RunResult, error) {
			return c.ReclassifyPersonality(cmd.Context())
		}))

	labels := newCategorizeRunCmd("labels LABEL...",
		"Reclassify contacts currently holding any of the given bucket labels",
		func(c *core.Categorizer, cmd *cobra.Command, args []string) (core.RunResult, error) {
			return c.ReclassifyLabels(cmd.Context(), args)
		})
	labels.Args = cobra.MinimumNArgs(1)
	cmd.AddCommand(labels)

	return cmd
}

type categorizeFunc func(c *core.Categorizer, cmd *cobra.Command, args []string) (core.RunResult, error)

func newCategorizeRunCmd(use, short string, run categorizeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := run(a.categorizer(), cmd, args)
			if jsonOutput() {
				if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
					return werr
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Classified %d of %d contact(s)\n", res.Updated, res.Total)
			}
			if err != nil {
				return fmt.Errorf("categorization stopped: %w", err)
			}
			return nil
		},
	}
}
