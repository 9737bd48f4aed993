// ABOUTME: Contact is the persistent entity keyed by email
// ABOUTME: Carries tag/history sets, main bucket flags and classifier output
package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact represents one person in the contact store
type Contact struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Tags     []string  `json:"tags"`

	// Main bucket memberships accumulated across ingestion passes
	InBiz         bool `json:"is_in_main_bucket_biz"`
	InHealth      bool `json:"is_in_main_bucket_health"`
	InSurvivalist bool `json:"is_in_main_bucket_survivalist"`

	EngagementLevel string   `json:"engagement_level,omitempty"`
	SummitHistory   []string `json:"summit_history"`
	EmailState      string   `json:"email_state,omitempty"`
	EmailSubState   string   `json:"email_sub_state,omitempty"`

	MainBucket        string `json:"main_bucket_assignment,omitempty"`
	PersonalityBucket string `json:"personality_bucket_assignment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetFlag marks membership in b. BucketNone is a no-op.
func (c *Contact) SetFlag(b MainBucket) {
	switch b {
	case BucketBiz:
		c.InBiz = true
	case BucketHealth:
		c.InHealth = true
	case BucketSurvivalist:
		c.InSurvivalist = true
	}
}

// HasFlag reports membership in b
func (c *Contact) HasFlag(b MainBucket) bool {
	switch b {
	case BucketBiz:
		return c.InBiz
	case BucketHealth:
		return c.InHealth
	case BucketSurvivalist:
		return c.InSurvivalist
	}
	return false
}

// Flags returns the buckets this contact belongs to in declaration order
func (c *Contact) Flags() []MainBucket {
	var out []MainBucket
	for _, b := range MainBuckets {
		if c.HasFlag(b) {
			out = append(out, b)
		}
	}
	return out
}

// IsClassified reports whether a classification pass has written both labels
func (c *Contact) IsClassified() bool {
	return c.MainBucket != "" && c.PersonalityBucket != ""
}

// Clone returns a deep copy so merges never alias the caller's slices
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	out.SummitHistory = append([]string(nil), c.SummitHistory...)
	return &out
}
