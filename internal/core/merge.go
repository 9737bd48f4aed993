// ABOUTME: Record Merge Engine combining an incoming row with the stored contact
// ABOUTME: Per-field overwrite, union or preserve rules; flags only accumulate
package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harper/contact-compass/internal/models"
)

// Row is one normalized CSV row ready for merging
type Row struct {
	Email     string
	FullName  string
	ContactID string
	Tags      []string

	// Target is the main bucket flag this ingestion pass sets
	Target models.MainBucket
	// MainBucket is the raw value of the row's main bucket column, if any
	MainBucket string

	EngagementLevel string
	SummitHistory   string
	EmailState      string
	EmailSubState   string
}

// ParseOrGenerateID returns the parsed UUID, or a fresh one when raw is empty
// or not a valid UUID. The bool reports whether raw was used.
func ParseOrGenerateID(raw string) (uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if id, err := uuid.Parse(raw); err == nil && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.New(), false
}

// ClaimFreeID gives a new contact a fresh id when it carries none or the one it
// carries is already owned by another stored contact. It reports whether the
// id changed.
func ClaimFreeID(ctx context.Context, s Store, c *models.Contact) (bool, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
		return true, nil
	}
	taken, err := s.HasID(ctx, c.ID)
	if err != nil || !taken {
		return false, err
	}
	c.ID = uuid.New()
	return true, nil
}

// Merge applies row to existing and returns the result plus whether a new
// contact was created. existing is never modified; pass nil for a first sighting.
func Merge(existing *models.Contact, row Row, now time.Time) (*models.Contact, bool) {
	if existing == nil {
		id, _ := ParseOrGenerateID(row.ContactID)
		c := &models.Contact{
			ID:              id,
			Email:           row.Email,
			FullName:        strings.TrimSpace(row.FullName),
			Tags:            unionStrings(nil, row.Tags),
			SummitHistory:   unionStrings(nil, []string{row.SummitHistory}),
			EngagementLevel: strings.TrimSpace(row.EngagementLevel),
			EmailState:      strings.TrimSpace(row.EmailState),
			EmailSubState:   strings.TrimSpace(row.EmailSubState),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		c.SetFlag(row.Target)
		return c, true
	}

	c := existing.Clone()
	overwrite(&c.FullName, row.FullName)
	c.Tags = unionStrings(c.Tags, row.Tags)
	c.SetFlag(row.Target)
	c.SummitHistory = unionStrings(c.SummitHistory, []string{row.SummitHistory})
	overwrite(&c.EngagementLevel, row.EngagementLevel)
	overwrite(&c.EmailState, row.EmailState)
	overwrite(&c.EmailSubState, row.EmailSubState)
	c.UpdatedAt = now
	return c, false
}

// Absorb folds a whole incoming record into existing with the merge rules.
// All three flags are OR-ed. Classification is taken from incoming only when
// existing has none.
func Absorb(existing, incoming *models.Contact) *models.Contact {
	if existing == nil {
		return incoming.Clone()
	}
	c := existing.Clone()
	if incoming == nil {
		return c
	}
	overwrite(&c.FullName, incoming.FullName)
	c.Tags = unionStrings(c.Tags, incoming.Tags)
	c.SummitHistory = unionStrings(c.SummitHistory, incoming.SummitHistory)
	for _, b := range incoming.Flags() {
		c.SetFlag(b)
	}
	overwrite(&c.EngagementLevel, incoming.EngagementLevel)
	overwrite(&c.EmailState, incoming.EmailState)
	overwrite(&c.EmailSubState, incoming.EmailSubState)
	if c.MainBucket == "" && c.PersonalityBucket == "" {
		c.MainBucket = incoming.MainBucket
		c.PersonalityBucket = incoming.PersonalityBucket
	}
	if incoming.UpdatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = incoming.UpdatedAt
	}
	return c
}

// BatchDeduper drops rows whose email was already seen in the current batch.
// Emails are compared exactly as provided.
type BatchDeduper struct {
	seen map[string]struct{}
}

// NewBatchDeduper returns an empty deduper
func NewBatchDeduper() *BatchDeduper {
	return &BatchDeduper{seen: make(map[string]struct{})}
}

// Accept reports whether the email is non-empty and first in the batch
func (d *BatchDeduper) Accept(email string) bool {
	if email == "" {
		return false
	}
	if _, ok := d.seen[email]; ok {
		return false
	}
	d.seen[email] = struct{}{}
	return true
}

func overwrite(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// unionStrings appends trimmed, non-empty values of add not already in base,
// keeping base order first
func unionStrings(base, add []string) []string {
	out := make([]string, 0, len(base)+len(add))
	seen := make(map[string]bool, len(base)+len(add))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range add {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
