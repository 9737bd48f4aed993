// ABOUTME: Contact storage operations for SQLite
// ABOUTME: Implements the keyed contact store plus listing, tag counts and stats
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/models"
)

// ErrNotFound is returned when a contact lookup matches nothing
var ErrNotFound = errors.New("contact not found")

const contactColumns = `id, email, full_name, tags,
	is_in_main_bucket_biz, is_in_main_bucket_health, is_in_main_bucket_survivalist,
	engagement_level, summit_history, email_state, email_sub_state,
	main_bucket_assignment, personality_bucket_assignment, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ContactStore handles contact persistence
type ContactStore struct {
	db   *DB
	q    querier
	inTx bool
}

// NewContactStore creates a new ContactStore
func NewContactStore(db *DB) *ContactStore {
	return &ContactStore{db: db, q: db.conn}
}

// GetByEmail retrieves a contact by email, or nil when there is none
func (s *ContactStore) GetByEmail(ctx context.Context, email string) (*models.Contact, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE email = ?`, email)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// HasID reports whether a contact with this id exists
func (s *ContactStore) HasID(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM contacts WHERE id = ? LIMIT 1`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up contact id: %w", err)
	}
	return true, nil
}

// Get is GetByEmail returning ErrNotFound for a missing contact
func (s *ContactStore) Get(ctx context.Context, email string) (*models.Contact, error) {
	c, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%s: %w", email, ErrNotFound)
	}
	return c, nil
}

// Upsert inserts a contact or replaces the stored row with the same email.
// The id and created_at of an existing row are kept.
func (s *ContactStore) Upsert(ctx context.Context, c *models.Contact) error {
	if c.Email == "" {
		return errors.New("contact email is required")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	tags, err := encodeList(c.Tags)
	if err != nil {
		return err
	}
	history, err := encodeList(c.SummitHistory)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			full_name = excluded.full_name,
			tags = excluded.tags,
			is_in_main_bucket_biz = excluded.is_in_main_bucket_biz,
			is_in_main_bucket_health = excluded.is_in_main_bucket_health,
			is_in_main_bucket_survivalist = excluded.is_in_main_bucket_survivalist,
			engagement_level = excluded.engagement_level,
			summit_history = excluded.summit_history,
			email_state = excluded.email_state,
			email_sub_state = excluded.email_sub_state,
			main_bucket_assignment = excluded.main_bucket_assignment,
			personality_bucket_assignment = excluded.personality_bucket_assignment,
			updated_at = excluded.updated_at
	`, c.ID.String(), c.Email, c.FullName, tags,
		c.InBiz, c.InHealth, c.InSurvivalist,
		c.EngagementLevel, history, c.EmailState, c.EmailSubState,
		nullString(c.MainBucket), nullString(c.PersonalityBucket),
		c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}
	return nil
}

// ListUnclassified returns contacts without a main bucket assignment
func (s *ContactStore) ListUnclassified(ctx context.Context) ([]*models.Contact, error) {
	return s.query(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE main_bucket_assignment IS NULL OR main_bucket_assignment = ''
		ORDER BY email`)
}

// ListMissingPersonality returns contacts without a personality assignment
func (s *ContactStore) ListMissingPersonality(ctx context.Context) ([]*models.Contact, error) {
	return s.query(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE personality_bucket_assignment IS NULL OR personality_bucket_assignment = ''
		ORDER BY email`)
}

// ListByLabels returns contacts whose main or personality assignment is one of labels
func (s *ContactStore) ListByLabels(ctx context.Context, labels []string) ([]*models.Contact, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	in, args := placeholders(labels)
	args = append(args, args...)
	return s.query(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE main_bucket_assignment IN (`+in+`) OR personality_bucket_assignment IN (`+in+`)
		ORDER BY email`, args...)
}

// SetClassification writes both classification labels for one contact
func (s *ContactStore) SetClassification(ctx context.Context, id uuid.UUID, main, personality string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE contacts
		SET main_bucket_assignment = ?, personality_bucket_assignment = ?, updated_at = ?
		WHERE id = ?
	`, nullString(main), nullString(personality), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to set classification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// InTx runs fn inside one transaction. Nested calls reuse the open transaction.
func (s *ContactStore) InTx(ctx context.Context, fn func(tx core.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStore := &ContactStore{db: s.db, q: tx, inTx: true}

	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListOptions filters and pages List
type ListOptions struct {
	Skip  int
	Limit int // 0 means no limit

	MainBucket        string
	PersonalityBucket string
	// Flag restricts to contacts flagged with this source bucket
	Flag models.MainBucket
	// Search matches email or full name by substring
	Search string

	SortBy string // registry field name; default email
	Desc   bool
}

func (o ListOptions) where() (string, []interface{}, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if o.MainBucket != "" {
		clauses = append(clauses, "main_bucket_assignment = ?")
		args = append(args, o.MainBucket)
	}
	if o.PersonalityBucket != "" {
		clauses = append(clauses, "personality_bucket_assignment = ?")
		args = append(args, o.PersonalityBucket)
	}
	if o.Flag != "" {
		col, ok := flagColumns[o.Flag]
		if !ok {
			return "", nil, fmt.Errorf("unknown main bucket flag %q", o.Flag)
		}
		clauses = append(clauses, col+" = 1")
	}
	if o.Search != "" {
		pattern := "%" + o.Search + "%"
		clauses = append(clauses, "(email LIKE ? OR full_name LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

var flagColumns = map[models.MainBucket]string{
	models.BucketBiz:         "is_in_main_bucket_biz",
	models.BucketHealth:      "is_in_main_bucket_health",
	models.BucketSurvivalist: "is_in_main_bucket_survivalist",
}

// List returns contacts matching opts in a stable order
func (s *ContactStore) List(ctx context.Context, opts ListOptions) ([]*models.Contact, error) {
	where, args, err := opts.where()
	if err != nil {
		return nil, err
	}

	order := "email"
	if opts.SortBy != "" {
		f, err := models.LookupSortField(opts.SortBy)
		if err != nil {
			return nil, err
		}
		order = f.Column
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}

	query := `SELECT ` + contactColumns + ` FROM contacts` + where +
		` ORDER BY ` + order + ` ` + dir + `, email ASC`
	if opts.Limit > 0 || opts.Skip > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(opts.Skip, 0))
	}
	return s.query(ctx, query, args...)
}

// Count returns how many contacts match the filters in opts
func (s *ContactStore) Count(ctx context.Context, opts ListOptions) (int, error) {
	where, args, err := opts.where()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// TagCount is one distinct tag and how many contacts carry it
type TagCount struct {
	Tag   string `json:"tag" yaml:"tag"`
	Count int    `json:"count" yaml:"count"`
}

// TagCounts returns every distinct tag, most used first
func (s *ContactStore) TagCounts(ctx context.Context) ([]TagCount, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT j.value, COUNT(*) AS n
		FROM contacts, json_each(contacts.tags) AS j
		GROUP BY j.value
		ORDER BY n DESC, j.value ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// LabelCount is a classification label and its contact count
type LabelCount struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// Stats holds the dashboard counts
type Stats struct {
	Total         int                       `json:"total" yaml:"total"`
	Unclassified  int                       `json:"unclassified" yaml:"unclassified"`
	Flags         map[models.MainBucket]int `json:"flags" yaml:"flags"`
	ByMain        []LabelCount              `json:"by_main_bucket" yaml:"by_main_bucket"`
	ByPersonality []LabelCount              `json:"by_personality_bucket" yaml:"by_personality_bucket"`
}

// Stats computes totals, flag counts and per-label counts
func (s *ContactStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Flags: make(map[models.MainBucket]int)}

	var biz, health, survivalist int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN main_bucket_assignment IS NULL OR main_bucket_assignment = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_in_main_bucket_biz), 0),
			COALESCE(SUM(is_in_main_bucket_health), 0),
			COALESCE(SUM(is_in_main_bucket_survivalist), 0)
		FROM contacts
	`).Scan(&st.Total, &st.Unclassified, &biz, &health, &survivalist)
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts: %w", err)
	}
	st.Flags[models.BucketBiz] = biz
	st.Flags[models.BucketHealth] = health
	st.Flags[models.BucketSurvivalist] = survivalist

	if st.ByMain, err = s.labelCounts(ctx, "main_bucket_assignment"); err != nil {
		return nil, err
	}
	if st.ByPersonality, err = s.labelCounts(ctx, "personality_bucket_assignment"); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *ContactStore) labelCounts(ctx context.Context, column string) ([]LabelCount, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*) AS n
		FROM contacts
		WHERE `+column+` IS NOT NULL AND `+column+` <> ''
		GROUP BY `+column+`
		ORDER BY n DESC, `+column+` ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func (s *ContactStore) query(ctx context.Context, query string, args ...interface{}) ([]*models.Contact, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row scanner) (*models.Contact, error) {
	var (
		c                    models.Contact
		id                   string
		tags, history        string
		main, personality    sql.NullString
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &c.Email, &c.FullName, &tags,
		&c.InBiz, &c.InHealth, &c.InSurvivalist,
		&c.EngagementLevel, &history, &c.EmailState, &c.EmailSubState,
		&main, &personality, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("contact %s has invalid id %q: %w", c.Email, id, err)
	}
	if c.Tags, err = decodeList(tags); err != nil {
		return nil, fmt.Errorf("contact %s tags: %w", c.Email, err)
	}
	if c.SummitHistory, err = decodeList(history); err != nil {
		return nil, fmt.Errorf("contact %s summit history: %w", c.Email, err)
	}
	c.MainBucket = main.String
	c.PersonalityBucket = personality.String
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	return &c, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func placeholders(values []string) (string, []interface{}) {
	args := make([]interface{}, len(values))
	marks := make([]string, len(values))
	for i, v := range values {
		args[i] = v
		marks[i] = "?"
	}
	return strings.Join(marks, ", "), args
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
