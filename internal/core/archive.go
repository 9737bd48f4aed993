// ABOUTME: ZIP archive ingestion with folder-encoded main bucket hints
// ABOUTME: Each CSV entry is ingested as its own batch; failures are per file
package core

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/models"
)

// File statuses reported by IngestArchive
const (
	StatusIngested = "ingested"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// ArchiveOptions controls bucket selection for archive entries
type ArchiveOptions struct {
	// UseFolders derives each file's bucket from its directory names
	UseFolders bool
	// Override is the bucket for every file when UseFolders is off, and for
	// files in unrecognized folders when it is on
	Override models.MainBucket
	Classify bool
}

// FileStatus is the outcome for one archive entry
type FileStatus struct {
	Path   string            `json:"path"`
	Bucket models.MainBucket `json:"bucket,omitempty"`
	Status string            `json:"status"`
	Result IngestResult      `json:"result"`
	Err    string            `json:"error,omitempty"`
}

// OpenArchive opens a ZIP file from disk. The caller closes it.
func OpenArchive(filePath string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open archive %s: %w", filePath, err)}
	}
	return zr, nil
}

// ReadArchive wraps in-memory ZIP bytes
func ReadArchive(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read archive: %w", err)}
	}
	return zr, nil
}

// FolderBucket returns the bucket named by the innermost directory of name
// that matches a folder alias
func FolderBucket(name string) (models.MainBucket, bool) {
	dirs := strings.Split(path.Dir(name), "/")
	for i := len(dirs) - 1; i >= 0; i-- {
		if b, ok := models.ParseMainBucket(dirs[i]); ok && b != models.BucketNone {
			return b, true
		}
	}
	return "", false
}

// IngestArchive walks CSV entries in name order and ingests each one through
// IngestCSV. Per-file failures are recorded and do not stop the walk.
func (i *Ingester) IngestArchive(ctx context.Context, zr *zip.Reader, opts ArchiveOptions) ([]FileStatus, error) {
	if opts.Override != "" && !opts.Override.IsValid() {
		return nil, fmt.Errorf("unknown main bucket %q", opts.Override)
	}
	if !opts.UseFolders && opts.Override == "" {
		return nil, ErrNoOverride
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if isIngestable(f) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(a, b int) bool { return files[a].Name < files[b].Name })

	statuses := make([]FileStatus, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}

		st := FileStatus{Path: f.Name, Bucket: opts.Override}
		if opts.UseFolders {
			if b, ok := FolderBucket(f.Name); ok {
				st.Bucket = b
			}
		}
		if st.Bucket == "" {
			st.Status = StatusSkipped
			st.Err = "no recognized bucket folder"
			i.logger.Info("skipping archive entry", zap.String("path", f.Name))
			statuses = append(statuses, st)
			continue
		}

		res, err := i.ingestEntry(ctx, f, st.Bucket, opts.Classify)
		st.Result = res
		if err != nil {
			st.Status = StatusFailed
			st.Err = err.Error()
			i.logger.Warn("archive entry failed", zap.String("path", f.Name), zap.Error(err))
			if ctx.Err() != nil {
				statuses = append(statuses, st)
				return statuses, ctx.Err()
			}
		} else {
			st.Status = StatusIngested
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (i *Ingester) ingestEntry(ctx context.Context, f *zip.File, bucket models.MainBucket, classify bool) (IngestResult, error) {
	rc, err := f.Open()
	if err != nil {
		return IngestResult{}, &ParseError{Err: err}
	}
	defer func() { _ = rc.Close() }()

	return i.IngestCSV(ctx, rc, IngestOptions{
		Target:   bucket,
		Filename: f.Name,
		Classify: classify,
	})
}

func isIngestable(f *zip.File) bool {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return false
	}
	if strings.HasPrefix(f.Name, "__MACOSX/") || strings.HasPrefix(path.Base(f.Name), ".") {
		return false
	}
	return strings.EqualFold(path.Ext(f.Name), ".csv")
}
