// ABOUTME: CLI command that watches an inbox directory and ingests dropped files
// ABOUTME: Runs until interrupted, then prints what was processed
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harper/contact-compass/internal/watch"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var (
		bucket   string
		debounce time.Duration
		classify bool
	)

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Ingest CSV and ZIP files dropped into a directory",
		Long: `Watch an inbox directory and ingest every .csv or .zip file that
lands in it once the file stops changing.

CSV rows are flagged with --bucket. Archive entries use their folder
name and fall back to --bucket. Ingested files move to DIR/processed,
files that fail move to DIR/failed. Files already in DIR when the
watcher starts are ingested too.

Examples:
  compass watch ~/Downloads/contacts
  compass watch --bucket health --classify ./inbox`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			target := a.cfg.WatchBucket
			if cmd.Flags().Changed("bucket") {
				if target, err = parseBucketFlag(bucket); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = a.cfg.WatchDebounce
			}
			if !cmd.Flags().Changed("classify") {
				classify = a.cfg.ClassifyOnIngest
			}

			w, err := watch.New(a.ingester(), watch.Options{
				Dir:      args[0],
				Bucket:   target,
				Debounce: debounce,
				Classify: classify,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (bucket %s). Press Ctrl+C to stop.\n", args[0], target)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return w.Run(gctx)
			})
			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}

			st := w.Stats()
			logger.Info("watcher stopped",
				zap.Int("processed", st.Processed),
				zap.Int("failed", st.Failed))
			if jsonOutput() {
				if jerr := writeJSON(cmd.OutOrStdout(), st); jerr != nil {
					return jerr
				}
			} else if !quiet {
				printWatchStats(cmd.OutOrStdout(), st)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Main bucket for dropped CSVs (default from COMPASS_WATCH_BUCKET)")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "How long a file must be quiet before ingesting (default from COMPASS_WATCH_DEBOUNCE)")
	cmd.Flags().BoolVar(&classify, "classify", false, "Classify touched contacts before committing (default from COMPASS_CLASSIFY_ON_INGEST)")

	return cmd
}

func printWatchStats(out io.Writer, st watch.Stats) {
	fmt.Fprintf(out, "\nEvents:    %d\n", st.Events)
	fmt.Fprintf(out, "Processed: %d\n", st.Processed)
	fmt.Fprintf(out, "Failed:    %d\n", st.Failed)
	if st.Errors > 0 {
		fmt.Fprintf(out, "Errors:    %d\n", st.Errors)
	}
	if st.LastFile != "" {
		fmt.Fprintf(out, "Last file: %s (%s)\n", st.LastFile, formatTime(st.LastEventTime))
	}
}
