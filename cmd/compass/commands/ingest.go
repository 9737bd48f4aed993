// ABOUTME: CLI commands to ingest contact CSV files and ZIP archives
// ABOUTME: Each CSV is one all-or-nothing batch merged by email
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/core"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	var (
		bucket     string
		fromColumn bool
		classify   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Ingest contact CSV files",
		Long: `Ingest one or more contact CSV exports into the contact store.

Rows are merged by email: tags and summit history accumulate, non-empty
values overwrite, and main bucket flags are never cleared. Each file is
one batch; if any row fails to parse or store, none of that file's rows
are kept.

Every row is flagged with --bucket (biz, health, survivalist or none),
or with the value of its own "Main Bucket" column when --from-column is
set. A filename like "B-Summit.csv" supplies engagement level B and
summit history "Summit" for rows that lack them.

Examples:
  compass ingest --bucket biz B-Summit.csv
  compass ingest --from-column --classify export.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseBucketFlag(bucket)
			if err != nil {
				return err
			}
			if target == "" && !fromColumn {
				return core.ErrNoTarget
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("classify") {
				classify = a.cfg.ClassifyOnIngest
			}
			opts := core.IngestOptions{Target: target, FromColumn: fromColumn, Classify: classify}
			return runIngest(cmd, a.ingester(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Main bucket for every row: biz, health, survivalist or none")
	cmd.Flags().BoolVar(&fromColumn, "from-column", false, "Read each row's bucket from its Main Bucket column")
	cmd.Flags().BoolVar(&classify, "classify", false, "Classify touched contacts before committing (default from COMPASS_CLASSIFY_ON_INGEST)")
	cmd.MarkFlagsMutuallyExclusive("bucket", "from-column")

	return cmd
}

type fileResult struct {
	File   string            `json:"file"`
	Result core.IngestResult `json:"result"`
	Error  string            `json:"error,omitempty"`
}

func runIngest(cmd *cobra.Command, ing *core.Ingester, files []string, opts core.IngestOptions) error {
	ctx := cmd.Context()
	results := make([]fileResult, 0, len(files))
	failed := 0

	for _, path := range files {
		fr := fileResult{File: path}
		res, err := ingestFile(cmd, ing, path, opts)
		fr.Result = res
		if err != nil {
			failed++
			fr.Error = err.Error()
			logger.Warn("ingest failed", zap.String("file", path), zap.Error(err))
		}
		results = append(results, fr)
		if ctx.Err() != nil {
			break
		}
	}

	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		printIngestTable(cmd.OutOrStdout(), results)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func ingestFile(cmd *cobra.Command, ing *core.Ingester, path string, opts core.IngestOptions) (core.IngestResult, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return core.IngestResult{}, err
	}
	defer func() { _ = f.Close() }()

	opts.Filename = filepath.Base(path)
	return ing.IngestCSV(cmd.Context(), f, opts)
}

func printIngestTable(out io.Writer, results []fileResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "FILE\tROWS\tCREATED\tUPDATED\tNO EMAIL\tDUPLICATE\tSTATUS\n")
	fmt.Fprintf(w, "----\t----\t-------\t-------\t--------\t---------\t------\n")
	for _, r := range results {
		status := "ok"
		if r.Error != "" {
			status = "rolled back: " + truncate(r.Error, 60)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			truncate(r.File, 40),
			r.Result.Total,
			r.Result.Created,
			r.Result.Updated,
			r.Result.SkippedNoEmail,
			r.Result.SkippedDuplicate,
			status)
	}
	_ = w.Flush()
}

// NewIngestZipCmd creates the ingest-zip command
func NewIngestZipCmd() *cobra.Command {
	var (
		bucket    string
		noFolders bool
		classify  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest-zip FILE",
		Short: "Ingest every CSV inside a ZIP archive",
		Long: `Ingest every CSV file inside a ZIP archive.

By default each file's main bucket comes from its folder name, so
"Business Operations/list.csv" is flagged biz and "Health/x.csv" health.
Files outside a recognized folder use --bucket, or are skipped without
it. With --no-folders every file uses --bucket.

Each file is its own batch: one bad file does not undo the others.

Examples:
  compass ingest-zip export.zip
  compass ingest-zip --no-folders --bucket survivalist export.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override, err := parseBucketFlag(bucket)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("classify") {
				classify = a.cfg.ClassifyOnIngest
			}

			zr, err := core.OpenArchive(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = zr.Close() }()

			files, err := a.ingester().IngestArchive(cmd.Context(), &zr.Reader, core.ArchiveOptions{
				UseFolders: !noFolders,
				Override:   override,
				Classify:   classify,
			})
			if err != nil {
				return err
			}
			return printArchiveResult(cmd.OutOrStdout(), files)
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Main bucket for files outside a recognized folder (or all files with --no-folders)")
	cmd.Flags().BoolVar(&noFolders, "no-folders", false, "Do not infer buckets from folder names")
	cmd.Flags().BoolVar(&classify, "classify", false, "Classify touched contacts before committing (default from COMPASS_CLASSIFY_ON_INGEST)")

	return cmd
}

func printArchiveResult(out io.Writer, files []core.FileStatus) error {
	failed := 0
	for _, f := range files {
		if f.Status == core.StatusFailed {
			failed++
		}
	}

	if jsonOutput() {
		if err := writeJSON(out, files); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "FILE\tBUCKET\tSTATUS\tROWS\tCREATED\tUPDATED\tDETAIL\n")
		fmt.Fprintf(w, "----\t------\t------\t----\t-------\t-------\t------\n")
		for _, f := range files {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				truncate(f.Path, 40),
				orDash(string(f.Bucket)),
				f.Status,
				f.Result.Total,
				f.Result.Created,
				f.Result.Updated,
				orDash(truncate(f.Err, 60)))
		}
		_ = w.Flush()
		if !quiet {
			fmt.Fprintf(out, "\nTotal: %d file(s)\n", len(files))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d archive files failed", failed, len(files))
	}
	return nil
}
