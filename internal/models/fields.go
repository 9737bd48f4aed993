// ABOUTME: Enumerated registry of contact fields for sorting and export
// ABOUTME: Unknown field names are rejected with UnknownFieldError
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is one exportable/sortable contact attribute
type Field struct {
	Name string
	// Column is the SQL column used for ORDER BY; empty when not sortable
	Column string
	Value  func(c *Contact) string
}

// Sortable reports whether the field can be used in ORDER BY
func (f Field) Sortable() bool {
	return f.Column != ""
}

// UnknownFieldError is returned for names outside the registry
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown contact field %q (allowed: %s)", e.Name, strings.Join(FieldNames(), ", "))
}

// Fields is the allow-list, in default export order
var Fields = []Field{
	{Name: "id", Column: "id", Value: func(c *Contact) string { return c.ID.String() }},
	{Name: "email", Column: "email", Value: func(c *Contact) string { return c.Email }},
	{Name: "full_name", Column: "full_name", Value: func(c *Contact) string { return c.FullName }},
	{Name: "tags", Value: func(c *Contact) string { return strings.Join(c.Tags, ", ") }},
	{Name: "main_bucket", Column: "main_bucket_assignment", Value: func(c *Contact) string { return c.MainBucket }},
	{Name: "personality_bucket", Column: "personality_bucket_assignment", Value: func(c *Contact) string { return c.PersonalityBucket }},
	{Name: "in_biz", Column: "is_in_main_bucket_biz", Value: func(c *Contact) string { return strconv.FormatBool(c.InBiz) }},
	{Name: "in_health", Column: "is_in_main_bucket_health", Value: func(c *Contact) string { return strconv.FormatBool(c.InHealth) }},
	{Name: "in_survivalist", Column: "is_in_main_bucket_survivalist", Value: func(c *Contact) string { return strconv.FormatBool(c.InSurvivalist) }},
	{Name: "engagement_level", Column: "engagement_level", Value: func(c *Contact) string { return c.EngagementLevel }},
	{Name: "summit_history", Value: func(c *Contact) string { return strings.Join(c.SummitHistory, ", ") }},
	{Name: "email_state", Column: "email_state", Value: func(c *Contact) string { return c.EmailState }},
	{Name: "email_sub_state", Column: "email_sub_state", Value: func(c *Contact) string { return c.EmailSubState }},
	{Name: "created_at", Column: "created_at", Value: func(c *Contact) string { return formatFieldTime(c.CreatedAt) }},
	{Name: "updated_at", Column: "updated_at", Value: func(c *Contact) string { return formatFieldTime(c.UpdatedAt) }},
}

// FieldNames lists registry names in order
func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// LookupField finds a field by name (case-insensitive)
func LookupField(name string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, f := range Fields {
		if f.Name == key {
			return f, nil
		}
	}
	return Field{}, &UnknownFieldError{Name: name}
}

// LookupSortField is LookupField restricted to sortable fields
func LookupSortField(name string) (Field, error) {
	f, err := LookupField(name)
	if err != nil {
		return Field{}, err
	}
	if !f.Sortable() {
		return Field{}, fmt.Errorf("field %q cannot be sorted on", f.Name)
	}
	return f, nil
}

// ParseFieldList resolves a comma-separated list; empty input selects all fields
func ParseFieldList(list string) ([]Field, error) {
	if strings.TrimSpace(list) == "" {
		return Fields, nil
	}
	var out []Field
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := LookupField(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func formatFieldTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
