// ABOUTME: Tests for export functionality
// ABOUTME: Verifies YAML, Markdown, and CSV export formats
package sqlite

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/harper/contact-compass/internal/models"
)

func seedExport(t *testing.T) *ContactStore {
	t.Helper()
	s := newTestStore(t)
	seed(t, s,
		&models.Contact{
			ID: uuid.New(), Email: "ada@example.com", FullName: "Ada | Lovelace",
			Tags: []string{"yoga", "keto"}, InHealth: true,
			MainBucket: "Health", PersonalityBucket: "Nutrition",
		},
		&models.Contact{ID: uuid.New(), Email: "bob@example.com", FullName: "Bob"},
	)
	return s
}

func TestExport(t *testing.T) {
	s := seedExport(t)

	data, err := s.Export(context.Background(), ListOptions{}, nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if data.Version != "1.0" {
		t.Errorf("Version = %v, want 1.0", data.Version)
	}
	if data.Tool != "compass" {
		t.Errorf("Tool = %v, want compass", data.Tool)
	}
	if len(data.Contacts) != 2 {
		t.Errorf("Contacts = %d, want 2", len(data.Contacts))
	}
	if len(data.Fields) != len(models.Fields) {
		t.Errorf("Fields = %d, want all %d", len(data.Fields), len(models.Fields))
	}
}

func TestExportYAML(t *testing.T) {
	s := seedExport(t)
	fields, _ := models.ParseFieldList("email,tags,main_bucket")

	data, err := s.Export(context.Background(), ListOptions{}, fields)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var buf bytes.Buffer
	if err := data.WriteTo(&buf, FormatYAML); err != nil {
		t.Fatalf("WriteTo(yaml) error = %v", err)
	}

	var parsed struct {
		Tool     string `yaml:"tool"`
		Contacts []struct {
			Email      string   `yaml:"email"`
			Tags       []string `yaml:"tags"`
			MainBucket string   `yaml:"main_bucket"`
		} `yaml:"contacts"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, buf.String())
	}
	if parsed.Tool != "compass" || len(parsed.Contacts) != 2 {
		t.Fatalf("parsed = %+v", parsed)
	}
	ada := parsed.Contacts[0]
	if ada.Email != "ada@example.com" || ada.MainBucket != "Health" || len(ada.Tags) != 2 {
		t.Errorf("ada = %+v", ada)
	}

	// field order follows the requested list
	out := buf.String()
	if strings.Index(out, "email:") > strings.Index(out, "main_bucket:") {
		t.Errorf("YAML fields out of order:\n%s", out)
	}
	if strings.Contains(out, "full_name") {
		t.Error("YAML should only contain selected fields")
	}
}

func TestExportMarkdown(t *testing.T) {
	s := seedExport(t)
	fields, _ := models.ParseFieldList("email,full_name")

	data, _ := s.Export(context.Background(), ListOptions{}, fields)
	var buf bytes.Buffer
	if err := data.WriteTo(&buf, FormatMarkdown); err != nil {
		t.Fatalf("WriteTo(markdown) error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"# Contact Export", "| email | full_name |", `Ada \| Lovelace`, "Contacts: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Markdown missing %q:\n%s", want, out)
		}
	}
}

func TestExportCSVToFile(t *testing.T) {
	s := seedExport(t)
	fields, _ := models.ParseFieldList("email,tags,in_health")

	data, _ := s.Export(context.Background(), ListOptions{MainBucket: "Health"}, fields)
	path := filepath.Join(t.TempDir(), "out", "contacts.csv")
	if err := data.ExportToFile(path, FormatCSV); err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := [][]string{
		{"email", "tags", "in_health"},
		{"ada@example.com", "yoga, keto", "true"},
	}
	if len(records) != len(want) {
		t.Fatalf("records = %v", records)
	}
	for i := range want {
		if strings.Join(records[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("record %d = %v, want %v", i, records[i], want[i])
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]string{"yaml": FormatYAML, ".yml": FormatYAML, "MD": FormatMarkdown, "markdown": FormatMarkdown, "csv": FormatCSV}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("ParseFormat(xlsx) should fail")
	}
}
