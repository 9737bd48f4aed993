// ABOUTME: CLI commands for tag usage counts and reference table suggestions
// ABOUTME: tags suggest asks the chat model to place tags the table does not know
package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/llm"
	"github.com/harper/contact-compass/internal/reference"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// NewTagsCmd creates the tags command
func NewTagsCmd() *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List distinct contact tags with counts",
		Long: `List every distinct tag carried by stored contacts, most used first,
with the personality bucket the reference table maps it to.

Examples:
  compass tags
  compass tags --csv > tags.csv
  compass tags suggest --append my_tags.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.store.TagCounts(cmd.Context())
			if err != nil {
				return err
			}
			table := a.classifier.Table()

			switch {
			case asCSV:
				return writeTagCSV(cmd.OutOrStdout(), counts, table)
			case jsonOutput():
				return writeJSON(cmd.OutOrStdout(), tagRows(counts, table))
			}

			if len(counts) == 0 {
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "No tags found\n")
				}
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "TAG\tCONTACTS\tPERSONALITY BUCKET\n")
			fmt.Fprintf(w, "---\t--------\t------------------\n")
			for _, r := range tagRows(counts, table) {
				fmt.Fprintf(w, "%s\t%d\t%s\n", truncate(r.Tag, 40), r.Count, orDash(r.Bucket))
			}
			_ = w.Flush()
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d tag(s)\n", len(counts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "Write tag,count,personality bucket CSV")
	cmd.AddCommand(newTagsSuggestCmd())

	return cmd
}

type tagRow struct {
	Tag    string `json:"tag"`
	Count  int    `json:"count"`
	Bucket string `json:"personality_bucket,omitempty"`
}

func tagRows(counts []sqlite.TagCount, table *reference.Table) []tagRow {
	rows := make([]tagRow, 0, len(counts))
	for _, tc := range counts {
		r := tagRow{Tag: tc.Tag, Count: tc.Count}
		if e, ok := table.Lookup(tc.Tag); ok {
			r.Bucket = e.Bucket
		}
		rows = append(rows, r)
	}
	return rows
}

func writeTagCSV(out io.Writer, counts []sqlite.TagCount, table *reference.Table) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"Tag", "Count", "Personality Bucket"}); err != nil {
		return err
	}
	for _, r := range tagRows(counts, table) {
		if err := w.Write([]string{r.Tag, strconv.Itoa(r.Count), r.Bucket}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// unmappedTags returns stored tags the table cannot place, most used first
func unmappedTags(counts []sqlite.TagCount, table *reference.Table) []string {
	var out []string
	for _, tc := range counts {
		if _, ok := table.Lookup(tc.Tag); !ok {
			out = append(out, tc.Tag)
		}
	}
	return out
}

func newTagsSuggestCmd() *cobra.Command {
	var (
		appendPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest personality buckets for unmapped tags",
		Long: `Ask the chat model to place each stored tag that the reference table
does not map into one of the table's personality buckets.

Prints reference table rows (Tag,Personality Bucket,Weight). With
--append the rows are appended to an existing table file instead.
Requires OPENAI_API_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNonNegativeInt(limit, "limit"); err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.OpenAIKey == "" {
				return errors.New("OPENAI_API_KEY is required for tag suggestions")
			}

			counts, err := a.store.TagCounts(cmd.Context())
			if err != nil {
				return err
			}
			table := a.classifier.Table()
			tags := unmappedTags(counts, table)
			if limit > 0 && len(tags) > limit {
				tags = tags[:limit]
			}
			if len(tags) == 0 {
				if !quiet {
					fmt.Fprintf(cmd.ErrOrStderr(), "Every stored tag is already mapped\n")
				}
				return nil
			}

			client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
				APIKey:     a.cfg.OpenAIKey,
				ChatModel:  a.cfg.ChatModel,
				MaxRetries: a.cfg.MaxRetries,
				RetryDelay: a.cfg.RetryDelay,
				Timeout:    a.cfg.Timeout,
			})
			if err != nil {
				return err
			}

			logger.Info("requesting tag suggestions", zap.Int("tags", len(tags)))
			suggestions, err := client.SuggestBuckets(cmd.Context(), tags, table.Buckets())
			if err != nil {
				return err
			}

			if appendPath == "" {
				return writeSuggestions(cmd.OutOrStdout(), suggestions, true)
			}

			f, err := os.OpenFile(appendPath, os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304
			if err != nil {
				return fmt.Errorf("opening reference table: %w", err)
			}
			if err := writeSuggestions(f, suggestions, false); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Appended %d row(s) to %s\n", len(suggestions), appendPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&appendPath, "append", "", "Append rows to this reference table CSV")
	cmd.Flags().IntVar(&limit, "limit", 0, "Only suggest for the N most used unmapped tags (0 for all)")

	return cmd
}

func writeSuggestions(out io.Writer, suggestions []llm.Suggestion, header bool) error {
	w := csv.NewWriter(out)
	if header {
		if err := w.Write([]string{"Tag", "Personality Bucket", "Weight"}); err != nil {
			return err
		}
	}
	for _, s := range suggestions {
		if err := w.Write([]string{s.Tag, s.Bucket, strconv.FormatFloat(s.Weight, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
