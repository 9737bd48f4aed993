// ABOUTME: Ingestion Pipeline turning one CSV payload into merged contacts
// ABOUTME: Header aliasing, per-row dedup and merge, one store transaction per batch
package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/models"
)

// Store is the keyed contact store the pipeline and runner write through
type Store interface {
	// GetByEmail returns nil with no error when no contact has the email
	GetByEmail(ctx context.Context, email string) (*models.Contact, error)
	// HasID reports whether any stored contact already owns id
	HasID(ctx context.Context, id uuid.UUID) (bool, error)
	Upsert(ctx context.Context, c *models.Contact) error
	ListUnclassified(ctx context.Context) ([]*models.Contact, error)
	ListMissingPersonality(ctx context.Context) ([]*models.Contact, error)
	ListByLabels(ctx context.Context, labels []string) ([]*models.Contact, error)
	SetClassification(ctx context.Context, id uuid.UUID, main, personality string) error
	// InTx runs fn against a transaction-scoped store. A returned error rolls
	// back everything fn wrote.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

var (
	// ErrNoTarget means neither or both of a target bucket and the main bucket column were chosen
	ErrNoTarget = errors.New("exactly one of a target main bucket or the main bucket column is required")
	// ErrNoOverride means folder inference is off and no override bucket was given
	ErrNoOverride = errors.New("a main bucket override is required when folder inference is disabled")
)

// ParseError reports a payload that cannot be interpreted as contact rows
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Logical columns and the header names that select them, in priority order
const (
	colEmail       = "email"
	colName        = "name"
	colID          = "id"
	colTags        = "tags"
	colMainBucket  = "main bucket"
	colEngagement  = "engagement"
	colHistory     = "history"
	colEmailState  = "email state"
	colEmailSubSta = "sub state"
)

var headerAliases = []struct {
	key     string
	aliases []string
}{
	{colEmail, []string{"email", "email address"}},
	{colName, []string{"full name", "first name", "name"}},
	{colID, []string{"contact id", "id"}},
	{colTags, []string{"tags", "tag", "contact tags"}},
	{colMainBucket, []string{"main bucket"}},
	{colEngagement, []string{"engagement", "engagement level"}},
	{colHistory, []string{"summit", "summit history"}},
	{colEmailState, []string{"email state"}},
	{colEmailSubSta, []string{"email sub-state", "email sub state"}},
}

// RowReader decodes CSV records into Rows by header name
type RowReader struct {
	r    *csv.Reader
	cols map[string]int
}

// NewRowReader reads the header. A payload without an Email column is a ParseError.
func NewRowReader(r io.Reader) (*RowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Err: errors.New("empty payload")}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	cols := make(map[string]int)
	for _, ha := range headerAliases {
		for _, alias := range ha.aliases {
			if i, ok := index[alias]; ok {
				cols[ha.key] = i
				break
			}
		}
	}
	if _, ok := cols[colEmail]; !ok {
		return nil, &ParseError{Line: 1, Err: errors.New("missing Email column")}
	}
	return &RowReader{r: cr, cols: cols}, nil
}

// HasColumn reports whether a logical column was found in the header
func (rr *RowReader) HasColumn(key string) bool {
	_, ok := rr.cols[key]
	return ok
}

// Next returns the next row, io.EOF at the end, or a ParseError
func (rr *RowReader) Next() (Row, error) {
	record, err := rr.r.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Row{}, &ParseError{Line: pe.Line, Err: pe.Err}
		}
		return Row{}, &ParseError{Err: err}
	}

	return Row{
		Email:           rr.get(record, colEmail),
		FullName:        rr.get(record, colName),
		ContactID:       rr.get(record, colID),
		Tags:            SplitTags(rr.get(record, colTags)),
		MainBucket:      rr.get(record, colMainBucket),
		EngagementLevel: rr.get(record, colEngagement),
		SummitHistory:   rr.get(record, colHistory),
		EmailState:      rr.get(record, colEmailState),
		EmailSubState:   rr.get(record, colEmailSubSta),
	}, nil
}

func (rr *RowReader) get(record []string, key string) string {
	i, ok := rr.cols[key]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// SplitTags splits a comma-separated tag cell, trimming and de-duplicating
func SplitTags(raw string) []string {
	return unionStrings(nil, strings.Split(raw, ","))
}

// IngestOptions selects how a batch marks main bucket membership
type IngestOptions struct {
	// Target is the bucket every row is flagged with
	Target models.MainBucket
	// FromColumn takes each row's bucket from its main bucket column instead
	FromColumn bool
	// Filename supplies engagement and history defaults
	Filename string
	// Classify assigns buckets to every touched contact before commit
	Classify bool
}

// IngestResult summarizes one batch
type IngestResult struct {
	Total            int `json:"total"`
	Success          int `json:"success"`
	Created          int `json:"created"`
	Updated          int `json:"updated"`
	SkippedNoEmail   int `json:"skipped_no_email"`
	SkippedDuplicate int `json:"skipped_duplicate"`
}

// Ingester runs ingestion batches against a store
type Ingester struct {
	store      Store
	classifier *Classifier
	logger     *zap.Logger
	now        func() time.Time
}

// IngesterOption configures an Ingester
type IngesterOption func(*Ingester)

// WithLogger sets the logger (default no-op)
func WithLogger(l *zap.Logger) IngesterOption {
	return func(i *Ingester) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithClassifier enables IngestOptions.Classify
func WithClassifier(c *Classifier) IngesterOption {
	return func(i *Ingester) { i.classifier = c }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) IngesterOption {
	return func(i *Ingester) { i.now = now }
}

// NewIngester creates an ingester writing to store
func NewIngester(store Store, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		store:  store,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IngestCSV parses r and merges every row into the store inside one
// transaction. Any parse or store error rolls the whole batch back.
func (i *Ingester) IngestCSV(ctx context.Context, r io.Reader, opts IngestOptions) (IngestResult, error) {
	if (opts.Target == "") == !opts.FromColumn {
		return IngestResult{}, ErrNoTarget
	}
	if opts.Target != "" && !opts.Target.IsValid() {
		return IngestResult{}, fmt.Errorf("unknown main bucket %q", opts.Target)
	}
	if opts.Classify && i.classifier == nil {
		return IngestResult{}, errors.New("classification requested but no classifier configured")
	}

	rows, err := NewRowReader(r)
	if err != nil {
		return IngestResult{}, err
	}
	if opts.FromColumn && !rows.HasColumn(colMainBucket) {
		return IngestResult{}, &ParseError{Line: 1, Err: errors.New("missing Main Bucket column")}
	}

	token := ParseFilenameToken(opts.Filename)
	log := i.logger.With(zap.String("file", opts.Filename), zap.String("target", string(opts.Target)))

	var res IngestResult
	err = i.store.InTx(ctx, func(tx Store) error {
		res = IngestResult{}
		dedup := NewBatchDeduper()
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			row, err := rows.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			res.Total++

			if row.Email == "" {
				res.SkippedNoEmail++
				continue
			}
			if !dedup.Accept(row.Email) {
				res.SkippedDuplicate++
				log.Debug("duplicate email in batch", zap.String("email", row.Email))
				continue
			}
			res.Success++

			if err := i.mergeRow(ctx, tx, row, opts, token, &res); err != nil {
				return err
			}
		}
	})
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return IngestResult{}, err
		}
		return IngestResult{}, fmt.Errorf("ingest batch rolled back: %w", err)
	}

	log.Info("batch ingested",
		zap.Int("rows", res.Total),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.SkippedNoEmail+res.SkippedDuplicate))
	return res, nil
}

func (i *Ingester) mergeRow(ctx context.Context, tx Store, row Row, opts IngestOptions, token FilenameToken, res *IngestResult) error {
	row.Target = opts.Target
	hint := ""
	if opts.FromColumn {
		row.Target = models.BucketNone
		if b, ok := models.ParseMainBucket(row.MainBucket); ok {
			row.Target = b
			if b != models.BucketNone {
				hint = b.Label()
			}
		}
	}
	if row.EngagementLevel == "" {
		row.EngagementLevel = token.Engagement
	}
	if row.SummitHistory == "" {
		row.SummitHistory = token.Label
	}

	existing, err := tx.GetByEmail(ctx, row.Email)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", row.Email, err)
	}
	merged, created := Merge(existing, row, i.now())
	if created {
		replaced, err := ClaimFreeID(ctx, tx, merged)
		if err != nil {
			return fmt.Errorf("check id for %s: %w", row.Email, err)
		}
		if replaced {
			i.logger.Debug("contact id already in use, generated a new one",
				zap.String("email", row.Email), zap.String("contact_id", row.ContactID))
		}
	}
	if opts.Classify {
		merged.MainBucket, merged.PersonalityBucket = i.classifier.Classify(merged.Tags, hint)
	}
	if err := tx.Upsert(ctx, merged); err != nil {
		return fmt.Errorf("upsert %s: %w", row.Email, err)
	}

	if created {
		res.Created++
	} else {
		res.Updated++
	}
	return nil
}
