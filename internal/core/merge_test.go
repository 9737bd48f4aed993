// ABOUTME: Tests for the Record Merge Engine
// ABOUTME: Verifies creation, monotonic unions, flag accumulation and dedup

package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/contact-compass/internal/models"
)

var (
	t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func TestClaimFreeID(t *testing.T) {
	ctx := context.Background()
	owner, _ := Merge(nil, Row{Email: "owner@example.com", ContactID: "7b1c2f0e-58a4-4d1a-9a53-0c6f1b7f2d11", Target: models.BucketBiz}, t0)
	store := newMemStore(owner)

	fresh, _ := Merge(nil, Row{Email: "fresh@example.com", Target: models.BucketBiz}, t0)
	want := fresh.ID
	replaced, err := ClaimFreeID(ctx, store, fresh)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, want, fresh.ID)

	clash, _ := Merge(nil, Row{Email: "clash@example.com", ContactID: owner.ID.String(), Target: models.BucketBiz}, t0)
	replaced, err = ClaimFreeID(ctx, store, clash)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.NotEqual(t, owner.ID, clash.ID)
	assert.NotEqual(t, uuid.Nil, clash.ID)

	blank := &models.Contact{Email: "blank@example.com"}
	replaced, err = ClaimFreeID(ctx, store, blank)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.NotEqual(t, uuid.Nil, blank.ID)
}

func TestParseOrGenerateID(t *testing.T) {
	known := uuid.MustParse("7b1c2f0e-58a4-4d1a-9a53-0c6f1b7f2d11")

	id, parsed := ParseOrGenerateID(" " + known.String() + " ")
	assert.True(t, parsed)
	assert.Equal(t, known, id)

	for _, raw := range []string{"", "12345", "not-a-uuid", uuid.Nil.String()} {
		id, parsed := ParseOrGenerateID(raw)
		assert.False(t, parsed, "raw %q", raw)
		assert.NotEqual(t, uuid.Nil, id, "raw %q", raw)
	}
}

func TestMerge_NewContact(t *testing.T) {
	known := uuid.New()
	row := Row{
		Email:           "ada@example.com",
		FullName:        " Ada ",
		ContactID:       known.String(),
		Tags:            []string{"yoga", " ", "keto", "yoga"},
		Target:          models.BucketHealth,
		EngagementLevel: "B",
		SummitHistory:   "Gut Summit",
		EmailState:      "subscribed",
	}

	got, created := Merge(nil, row, t0)
	require.True(t, created)

	want := &models.Contact{
		ID:              known,
		Email:           "ada@example.com",
		FullName:        "Ada",
		Tags:            []string{"yoga", "keto"},
		InHealth:        true,
		EngagementLevel: "B",
		SummitHistory:   []string{"Gut Summit"},
		EmailState:      "subscribed",
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_NoneTargetSetsNoFlags(t *testing.T) {
	got, _ := Merge(nil, Row{Email: "x@example.com", Target: models.BucketNone}, t0)
	assert.Empty(t, got.Flags())
	assert.Empty(t, got.SummitHistory)
}

func TestMerge_ExistingContact(t *testing.T) {
	existing := &models.Contact{
		ID:                uuid.New(),
		Email:             "ada@example.com",
		FullName:          "Ada",
		Tags:              []string{"yoga", "keto"},
		InBiz:             true,
		EngagementLevel:   "A",
		SummitHistory:     []string{"Gut Summit"},
		EmailState:        "subscribed",
		EmailSubState:     "active",
		MainBucket:        "Business Operations",
		PersonalityBucket: "Nutrition",
		CreatedAt:         t0,
		UpdatedAt:         t0,
	}
	before := existing.Clone()

	row := Row{
		Email:         "ada@example.com",
		ContactID:     uuid.New().String(),
		Tags:          []string{"keto", "seo"},
		Target:        models.BucketHealth,
		SummitHistory: "Brain Summit",
		EmailSubState: "bounced",
	}
	got, created := Merge(existing, row, t1)
	require.False(t, created)

	want := before.Clone()
	want.Tags = []string{"yoga", "keto", "seo"}
	want.InHealth = true
	want.SummitHistory = []string{"Gut Summit", "Brain Summit"}
	want.EmailSubState = "bounced"
	want.UpdatedAt = t1
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, existing); diff != "" {
		t.Errorf("Merge() modified its input:\n%s", diff)
	}
}

func TestMerge_Monotonic(t *testing.T) {
	c, _ := Merge(nil, Row{Email: "m@example.com", Tags: []string{"a", "b"}, SummitHistory: "s1", Target: models.BucketBiz}, t0)

	passes := []Row{
		{Email: "m@example.com", Tags: nil, Target: models.BucketNone},
		{Email: "m@example.com", Tags: []string{"c"}, SummitHistory: "s2", Target: models.BucketSurvivalist},
		{Email: "m@example.com", Tags: []string{"a"}, Target: models.BucketHealth},
	}
	for _, row := range passes {
		prevTags, prevHistory, prevFlags := c.Tags, c.SummitHistory, c.Flags()
		c, _ = Merge(c, row, t1)
		assert.Subset(t, c.Tags, prevTags)
		assert.Subset(t, c.SummitHistory, prevHistory)
		assert.Subset(t, c.Flags(), prevFlags)
	}

	assert.Equal(t, []string{"a", "b", "c"}, c.Tags)
	assert.Equal(t, []string{"s1", "s2"}, c.SummitHistory)
	assert.True(t, c.InBiz && c.InHealth && c.InSurvivalist)
}

func TestMerge_FlagAccumulation(t *testing.T) {
	c, _ := Merge(nil, Row{Email: "f@example.com", Target: models.BucketBiz}, t0)
	assert.Equal(t, []models.MainBucket{models.BucketBiz}, c.Flags())

	c, _ = Merge(c, Row{Email: "f@example.com", Target: models.BucketHealth}, t1)
	assert.Equal(t, []models.MainBucket{models.BucketBiz, models.BucketHealth}, c.Flags())
}

func TestMerge_EmptyValuesPreserve(t *testing.T) {
	existing := &models.Contact{
		ID: uuid.New(), Email: "p@example.com", FullName: "Pat",
		EngagementLevel: "C", EmailState: "subscribed", EmailSubState: "active",
	}
	got, _ := Merge(existing, Row{Email: "p@example.com", FullName: "  ", EngagementLevel: ""}, t1)
	assert.Equal(t, "Pat", got.FullName)
	assert.Equal(t, "C", got.EngagementLevel)
	assert.Equal(t, "subscribed", got.EmailState)
	assert.Equal(t, "active", got.EmailSubState)
	assert.Equal(t, existing.ID, got.ID)
}

func TestAbsorb(t *testing.T) {
	local := &models.Contact{
		ID: uuid.New(), Email: "s@example.com", FullName: "Sam",
		Tags: []string{"a"}, InBiz: true, UpdatedAt: t0,
	}
	remote := &models.Contact{
		ID: uuid.New(), Email: "s@example.com", FullName: "Samuel",
		Tags: []string{"b"}, InSurvivalist: true, SummitHistory: []string{"s1"},
		MainBucket: "Survivalist", PersonalityBucket: "Survivalist NED", UpdatedAt: t1,
	}

	got := Absorb(local, remote)
	assert.Equal(t, local.ID, got.ID)
	assert.Equal(t, "Samuel", got.FullName)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.True(t, got.InBiz)
	assert.True(t, got.InSurvivalist)
	assert.Equal(t, "Survivalist", got.MainBucket)
	assert.Equal(t, t1, got.UpdatedAt)

	local.MainBucket, local.PersonalityBucket = "Health", "Health NED"
	got = Absorb(local, remote)
	assert.Equal(t, "Health", got.MainBucket, "local classification wins")

	fresh := Absorb(nil, remote)
	assert.Equal(t, remote.ID, fresh.ID)
	fresh.Tags[0] = "changed"
	assert.Equal(t, "b", remote.Tags[0], "absorb copies slices")
}

func TestBatchDeduper(t *testing.T) {
	d := NewBatchDeduper()
	assert.False(t, d.Accept(""))
	assert.True(t, d.Accept("a@example.com"))
	assert.False(t, d.Accept("a@example.com"))
	assert.True(t, d.Accept("A@example.com"), "no case folding")
}
