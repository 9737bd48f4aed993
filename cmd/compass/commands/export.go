// ABOUTME: CLI command to export contacts as YAML, Markdown or CSV
// ABOUTME: Field selection and order come from the contact field registry
package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/contact-compass/internal/models"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var (
		format string
		output string
		fields string
		opts   sqlite.ListOptions
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export contacts to YAML, Markdown or CSV",
		Long: fmt.Sprintf(`Export contacts to a file or stdout.

The format defaults to the output file's extension, or YAML on stdout.
--fields picks and orders columns from: %s

Examples:
  compass export -o contacts.csv
  compass export --type markdown --main Health
  compass export --fields email,main_bucket,personality_bucket -o out.yaml`,
			strings.Join(models.FieldNames(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = sqlite.FormatYAML
				if output != "" && filepath.Ext(output) != "" {
					format = filepath.Ext(output)
				}
			}
			f, err := sqlite.ParseFormat(format)
			if err != nil {
				return err
			}
			selected, err := models.ParseFieldList(fields)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.store.Export(cmd.Context(), opts, selected)
			if err != nil {
				return err
			}

			if output == "" {
				return data.WriteTo(cmd.OutOrStdout(), f)
			}
			if err := data.ExportToFile(output, f); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d contact(s) to %s\n", len(data.Contacts), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "type", "t", "", "Export format: yaml, markdown or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&fields, "fields", "", "Comma-separated fields to export (default all)")
	cmd.Flags().StringVar(&opts.MainBucket, "main", "", "Only contacts with this main bucket label")
	cmd.Flags().StringVar(&opts.PersonalityBucket, "personality", "", "Only contacts with this personality bucket label")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "Field to sort by (default email)")

	return cmd
}
