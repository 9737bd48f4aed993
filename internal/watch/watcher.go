// ABOUTME: Inbox watcher that auto-ingests CSV and ZIP files dropped into a directory
// ABOUTME: Debounces fsnotify events and files each input under processed/ or failed/
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/models"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Options configures a Watcher
type Options struct {
	// Dir is the inbox directory. Only files directly inside it are picked up.
	Dir string
	// Bucket flags every row of a dropped CSV, and is the override for
	// archive entries outside a recognized folder
	Bucket   models.MainBucket
	Debounce time.Duration
	Classify bool
	Logger   *zap.Logger
}

// Stats tracks watcher activity
type Stats struct {
	Events        int
	Processed     int
	Failed        int
	Errors        int
	LastEventTime time.Time
	LastFile      string
}

// Outcome is what happened to one inbox file
type Outcome struct {
	Path   string            `json:"path"`
	Moved  string            `json:"moved_to,omitempty"`
	Result core.IngestResult `json:"result"`
	Files  []core.FileStatus `json:"files,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// Watcher ingests files as they settle in the inbox
type Watcher struct {
	ingester *core.Ingester
	opts     Options
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	stats   Stats
}

// New creates a watcher for opts.Dir
func New(ingester *core.Ingester, opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if opts.Bucket == "" {
		opts.Bucket = models.BucketNone
	}
	if !opts.Bucket.IsValid() {
		return nil, fmt.Errorf("unknown main bucket %q", opts.Bucket)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		ingester: ingester,
		opts:     opts,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}, nil
}

// Stats returns a snapshot of the counters
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run watches the inbox until ctx is done. Files already present when Run
// starts are ingested on the first tick.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.opts.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}
	w.logger.Info("watching inbox", zap.String("dir", w.opts.Dir), zap.String("bucket", string(w.opts.Bucket)))

	if err := w.enqueueExisting(); err != nil {
		return err
	}

	tick := max(w.opts.Debounce/5, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !Ingestable(event.Name) || filepath.Dir(event.Name) != filepath.Clean(w.opts.Dir) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastFile = event.Name
	w.pending[event.Name] = time.Now()
}

func (w *Watcher) enqueueExisting() error {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range entries {
		p := filepath.Join(w.opts.Dir, e.Name())
		if !e.IsDir() && Ingestable(p) {
			w.pending[p] = time.Time{}
		}
	}
	return nil
}

func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for p, at := range w.pending {
		if now.Sub(at) >= w.opts.Debounce {
			ready = append(ready, p)
			delete(w.pending, p)
		}
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, p := range ready {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_, _ = w.ProcessFile(ctx, p)
	}
}

// Ingestable reports whether the watcher handles files like path
func Ingestable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".zip":
		return true
	}
	return false
}

// ProcessFile ingests one inbox file and moves it to processed/ or failed/.
// A file interrupted by cancellation stays in the inbox.
func (w *Watcher) ProcessFile(ctx context.Context, path string) (Outcome, error) {
	out := Outcome{Path: path}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		out.Result, err = w.ingestCSV(ctx, path)
	case ".zip":
		out.Files, err = w.ingestZip(ctx, path)
	default:
		return out, fmt.Errorf("unsupported inbox file %s", path)
	}

	if ctx.Err() != nil {
		return out, ctx.Err()
	}

	dest := ProcessedDir
	if err != nil {
		dest = FailedDir
		out.Err = err.Error()
		w.logger.Warn("inbox file failed", zap.String("path", path), zap.Error(err))
	} else {
		w.logger.Info("inbox file ingested", zap.String("path", path))
	}

	moved, moveErr := moveInto(path, filepath.Join(w.opts.Dir, dest))
	out.Moved = moved

	w.mu.Lock()
	if err != nil {
		w.stats.Failed++
	} else {
		w.stats.Processed++
	}
	if moveErr != nil {
		w.stats.Errors++
	}
	w.mu.Unlock()

	if moveErr != nil {
		return out, moveErr
	}
	return out, err
}

func (w *Watcher) ingestCSV(ctx context.Context, path string) (core.IngestResult, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return core.IngestResult{}, err
	}
	defer func() { _ = f.Close() }()

	return w.ingester.IngestCSV(ctx, f, core.IngestOptions{
		Target:   w.opts.Bucket,
		Filename: filepath.Base(path),
		Classify: w.opts.Classify,
	})
}

func (w *Watcher) ingestZip(ctx context.Context, path string) ([]core.FileStatus, error) {
	zr, err := core.OpenArchive(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	files, err := w.ingester.IngestArchive(ctx, &zr.Reader, core.ArchiveOptions{
		UseFolders: true,
		Override:   w.opts.Bucket,
		Classify:   w.opts.Classify,
	})
	if err != nil {
		return files, err
	}
	for _, f := range files {
		if f.Status == core.StatusFailed {
			return files, fmt.Errorf("archive entry %s failed: %s", f.Path, f.Err)
		}
	}
	return files, nil
}

// moveInto renames path into dir, suffixing a timestamp if the name is taken
func moveInto(path, dir string) (string, error) {
	base := filepath.Base(path)
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		dest = filepath.Join(dir, fmt.Sprintf("%s.%s%s", strings.TrimSuffix(base, ext), time.Now().Format("20060102-150405.000"), ext))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", path, err)
	}
	return dest, nil
}
