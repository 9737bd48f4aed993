// ABOUTME: CLI command to list contacts
// ABOUTME: Supports bucket filters, search, paging and registry-field sorting
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// NewListCmd creates list command
func NewListCmd() *cobra.Command {
	var (
		opts sqlite.ListOptions
		flag string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Long: `List contacts in the store, one per line.

Filter by assigned main or personality bucket label, by source bucket
flag, or by a substring of the email or name. Results are sorted by
email unless --sort names another field.

Examples:
  compass list
  compass list --main Health --limit 20
  compass list --flag survivalist --sort updated_at --desc
  compass list --search gmail.com --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNonNegativeInt(opts.Skip, "skip"); err != nil {
				return err
			}
			if err := validateNonNegativeInt(opts.Limit, "limit"); err != nil {
				return err
			}
			b, err := parseBucketFlag(flag)
			if err != nil {
				return err
			}
			opts.Flag = b

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			contacts, err := a.store.List(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("listing contacts: %w", err)
			}
			total, err := a.store.Count(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("counting contacts: %w", err)
			}

			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), contacts)
			}

			if len(contacts) == 0 {
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "No contacts found\n")
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "EMAIL\tNAME\tFLAGS\tMAIN\tPERSONALITY\tTAGS\tUPDATED\n")
			fmt.Fprintf(w, "-----\t----\t-----\t----\t-----------\t----\t-------\n")
			for _, c := range contacts {
				flags := make([]string, 0, 3)
				for _, f := range c.Flags() {
					flags = append(flags, string(f))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					truncate(c.Email, 35),
					orDash(truncate(c.FullName, 20)),
					orDash(strings.Join(flags, ",")),
					orDash(truncate(c.MainBucket, 20)),
					orDash(truncate(c.PersonalityBucket, 30)),
					len(c.Tags),
					formatTime(c.UpdatedAt))
			}
			_ = w.Flush()

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d contact(s)\n", len(contacts), total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.MainBucket, "main", "", "Only contacts with this main bucket label")
	cmd.Flags().StringVar(&opts.PersonalityBucket, "personality", "", "Only contacts with this personality bucket label")
	cmd.Flags().StringVar(&flag, "flag", "", "Only contacts flagged with this source bucket (biz, health, survivalist)")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "Substring match on email or name")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "Number of contacts to skip")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 100, "Maximum number of contacts (0 for all)")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "Field to sort by (default email)")
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "Sort descending")

	return cmd
}
