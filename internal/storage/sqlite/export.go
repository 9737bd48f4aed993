// ABOUTME: Export functionality for contact data
// ABOUTME: Supports YAML, Markdown and CSV export of registry fields
package sqlite

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/contact-compass/internal/models"
)

// Export formats
const (
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// ExportData is the exportable snapshot of the store
type ExportData struct {
	Version    string
	ExportedAt string
	Tool       string
	Fields     []models.Field
	Contacts   []*models.Contact
}

// Export collects every contact matching opts
func (s *ContactStore) Export(ctx context.Context, opts ListOptions, fields []models.Field) (*ExportData, error) {
	contacts, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	if len(fields) == 0 {
		fields = models.Fields
	}
	return &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "compass",
		Fields:     fields,
		Contacts:   contacts,
	}, nil
}

// ParseFormat normalizes a format name or file extension
func ParseFormat(name string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use yaml, markdown or csv)", name)
}

// WriteTo encodes data in the given format
func (d *ExportData) WriteTo(w io.Writer, format string) error {
	switch format {
	case FormatYAML:
		return d.writeYAML(w)
	case FormatMarkdown:
		return d.writeMarkdown(w)
	case FormatCSV:
		return d.writeCSV(w)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// ExportToFile writes data to outputPath, creating parent directories
func (d *ExportData) ExportToFile(outputPath, format string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return d.WriteTo(file, format)
}

// writeYAML keeps registry field order by building the mapping nodes directly
func (d *ExportData) writeYAML(w io.Writer) error {
	contacts := &yaml.Node{Kind: yaml.SequenceNode}
	for _, c := range d.Contacts {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, f := range d.Fields {
			m.Content = append(m.Content, scalar(f.Name), fieldNode(f, c))
		}
		contacts.Content = append(contacts.Content, m)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		scalar("version"), scalar(d.Version),
		scalar("exported_at"), scalar(d.ExportedAt),
		scalar("tool"), scalar(d.Tool),
		scalar("contacts"), contacts,
	}}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// fieldNode renders list fields as YAML sequences and the rest as strings
func fieldNode(f models.Field, c *models.Contact) *yaml.Node {
	var list []string
	switch f.Name {
	case "tags":
		list = c.Tags
	case "summit_history":
		list = c.SummitHistory
	default:
		return scalar(f.Value(c))
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range list {
		seq.Content = append(seq.Content, scalar(v))
	}
	return seq
}

func (d *ExportData) writeMarkdown(w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Contact Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Generated: %s\n\n", d.ExportedAt)
	_, _ = fmt.Fprintf(w, "Contacts: %d\n\n", len(d.Contacts))

	if len(d.Contacts) == 0 {
		return nil
	}

	names := make([]string, len(d.Fields))
	rules := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
		rules[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(names, " | "))
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(rules, " | "))
	for _, c := range d.Contacts {
		cells := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			cells[i] = markdownCell(f.Value(c))
		}
		if _, err := fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | ")); err != nil {
			return err
		}
	}
	return nil
}

func markdownCell(v string) string {
	v = strings.ReplaceAll(v, "|", `\|`)
	return strings.ReplaceAll(v, "\n", " ")
}

func (d *ExportData) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		header[i] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range d.Contacts {
		record := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			record[i] = f.Value(c)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
