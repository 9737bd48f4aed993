// ABOUTME: Tag Reference Table mapping normalized tags to personality buckets
// ABOUTME: Built once from CSV and treated as immutable afterwards
package reference

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

//go:embed default_tags.csv
var defaultTagsCSV []byte

// Placeholder bucket value that keeps a tag out of the lookup
const placeholderBucket = "to be classified"

// Entry is one tag's target bucket and weight
type Entry struct {
	Bucket string
	Weight float64
}

// Table is the immutable tag lookup. The zero value is an empty table.
type Table struct {
	entries      map[string]Entry
	unclassified []string
}

// LoadError reports a reference source the classifier cannot use
type LoadError struct {
	Missing []string
	Err     error
}

func (e *LoadError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("tag reference table: missing required columns: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("tag reference table: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NormalizeTag is the key form used for lookups
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Load parses a CSV source with a header row. Required columns are matched
// case-insensitively: "tag", "weight" and one containing both "personality"
// and "bucket".
func Load(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Err: errors.New("empty source")}
	}
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	tagCol, bucketCol, weightCol := -1, -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case name == "tag" && tagCol < 0:
			tagCol = i
		case name == "weight" && weightCol < 0:
			weightCol = i
		case strings.Contains(name, "personality") && strings.Contains(name, "bucket") && bucketCol < 0:
			bucketCol = i
		}
	}

	var missing []string
	if tagCol < 0 {
		missing = append(missing, "tag")
	}
	if bucketCol < 0 {
		missing = append(missing, "personality bucket")
	}
	if weightCol < 0 {
		missing = append(missing, "weight")
	}
	if len(missing) > 0 {
		return nil, &LoadError{Missing: missing}
	}

	t := &Table{entries: make(map[string]Entry)}
	seenUnclassified := make(map[string]bool)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Err: err}
		}

		key := NormalizeTag(field(record, tagCol))
		if key == "" {
			continue
		}
		bucket := strings.TrimSpace(field(record, bucketCol))
		if bucket == "" || strings.EqualFold(bucket, placeholderBucket) {
			if !seenUnclassified[key] {
				seenUnclassified[key] = true
				t.unclassified = append(t.unclassified, key)
			}
			continue
		}

		t.entries[key] = Entry{Bucket: bucket, Weight: parseWeight(field(record, weightCol))}
	}

	return t, nil
}

// LoadFile loads a reference table from a CSV file
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Default returns the table bundled with the binary
func Default() *Table {
	t, err := Load(bytes.NewReader(defaultTagsCSV))
	if err != nil {
		panic(fmt.Sprintf("embedded tag table is invalid: %v", err))
	}
	return t
}

// FromEntries builds a table from tag -> entry pairs, normalizing keys and
// applying the same placeholder rule as Load. A zero weight counts as unset and
// a NaN or infinite weight as malformed; both become 1.
func FromEntries(entries map[string]Entry) *Table {
	t := &Table{entries: make(map[string]Entry, len(entries))}
	seenUnclassified := make(map[string]bool)
	for tag, e := range entries {
		key := NormalizeTag(tag)
		if key == "" {
			continue
		}
		bucket := strings.TrimSpace(e.Bucket)
		if bucket == "" || strings.EqualFold(bucket, placeholderBucket) {
			if !seenUnclassified[key] {
				seenUnclassified[key] = true
				t.unclassified = append(t.unclassified, key)
			}
			continue
		}
		w := e.Weight
		if w == 0 || !finite(w) {
			w = 1
		}
		t.entries[key] = Entry{Bucket: bucket, Weight: w}
	}
	sort.Strings(t.unclassified)
	return t
}

// Lookup returns the entry for a tag, normalizing it first
func (t *Table) Lookup(tag string) (Entry, bool) {
	if t == nil || t.entries == nil {
		return Entry{}, false
	}
	e, ok := t.entries[NormalizeTag(tag)]
	return e, ok
}

// Len is the number of classifiable tags
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Buckets returns the distinct personality buckets, sorted
func (t *Table) Buckets() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range t.entries {
		if !seen[e.Bucket] {
			seen[e.Bucket] = true
			out = append(out, e.Bucket)
		}
	}
	sort.Strings(out)
	return out
}

// Unclassified lists tags present in the source with a blank or placeholder bucket
func (t *Table) Unclassified() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.unclassified...)
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

// parseWeight defaults malformed or empty weights to 1
func parseWeight(s string) float64 {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(w) {
		return 1
	}
	return w
}

func finite(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0)
}
