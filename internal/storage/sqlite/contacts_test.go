// ABOUTME: Tests for ContactStore persistence, transactions and queries
// ABOUTME: Runs the ingestion pipeline against an in-memory database end to end
package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/models"
	"github.com/harper/contact-compass/internal/reference"
)

func newTestStore(t *testing.T) *ContactStore {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewContactStore(db)
}

func seed(t *testing.T, s *ContactStore, contacts ...*models.Contact) {
	t.Helper()
	for _, c := range contacts {
		if err := s.Upsert(context.Background(), c); err != nil {
			t.Fatalf("Upsert(%s) error = %v", c.Email, err)
		}
	}
}

func TestContactStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	in := &models.Contact{
		ID:                uuid.New(),
		Email:             "ada@example.com",
		FullName:          "Ada",
		Tags:              []string{"yoga", "keto"},
		InHealth:          true,
		EngagementLevel:   "B",
		SummitHistory:     []string{"Gut Summit"},
		EmailState:        "subscribed",
		EmailSubState:     "active",
		MainBucket:        "Health",
		PersonalityBucket: "Nutrition",
		CreatedAt:         at,
		UpdatedAt:         at,
	}
	seed(t, s, in)

	got, err := s.GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestContactStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.GetByEmail(ctx, "nobody@example.com")
	if err != nil || c != nil {
		t.Errorf("GetByEmail() = %v, %v; want nil, nil", c, err)
	}

	_, err = s.Get(ctx, "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestContactStore_UpsertKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.Contact{ID: uuid.New(), Email: "a@example.com", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	seed(t, s, first)

	second := &models.Contact{ID: uuid.New(), Email: "a@example.com", FullName: "Changed", Tags: []string{"x"}}
	seed(t, s, second)

	got, _ := s.GetByEmail(ctx, "a@example.com")
	if got.ID != first.ID {
		t.Errorf("ID = %v, want original %v", got.ID, first.ID)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, first.CreatedAt)
	}
	if got.FullName != "Changed" {
		t.Errorf("FullName = %q, want Changed", got.FullName)
	}

	n, _ := s.Count(ctx, ListOptions{})
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestContactStore_ClassificationQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &models.Contact{ID: uuid.New(), Email: "a@example.com"}
	b := &models.Contact{ID: uuid.New(), Email: "b@example.com", MainBucket: "Health"}
	c := &models.Contact{ID: uuid.New(), Email: "c@example.com", MainBucket: "Health", PersonalityBucket: "Health NED"}
	seed(t, s, c, b, a)

	unclassified, err := s.ListUnclassified(ctx)
	if err != nil {
		t.Fatalf("ListUnclassified() error = %v", err)
	}
	if len(unclassified) != 1 || unclassified[0].Email != "a@example.com" {
		t.Errorf("ListUnclassified() = %v", emails(unclassified))
	}

	missing, _ := s.ListMissingPersonality(ctx)
	if got := emails(missing); got != "a@example.com,b@example.com" {
		t.Errorf("ListMissingPersonality() = %s", got)
	}

	labeled, _ := s.ListByLabels(ctx, []string{"Health NED", "Survivalist"})
	if got := emails(labeled); got != "c@example.com" {
		t.Errorf("ListByLabels() = %s", got)
	}

	if err := s.SetClassification(ctx, a.ID, "Survivalist", "Survivalist NED"); err != nil {
		t.Fatalf("SetClassification() error = %v", err)
	}
	got, _ := s.GetByEmail(ctx, "a@example.com")
	if got.MainBucket != "Survivalist" || got.PersonalityBucket != "Survivalist NED" {
		t.Errorf("classification = %q/%q", got.MainBucket, got.PersonalityBucket)
	}

	err = s.SetClassification(ctx, uuid.New(), "x", "y")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetClassification(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestContactStore_InTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, &models.Contact{ID: uuid.New(), Email: "keep@example.com", FullName: "Keep"})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx core.Store) error {
		if err := tx.Upsert(ctx, &models.Contact{ID: uuid.New(), Email: "new@example.com"}); err != nil {
			return err
		}
		if err := tx.Upsert(ctx, &models.Contact{ID: uuid.New(), Email: "keep@example.com", FullName: "Changed"}); err != nil {
			return err
		}
		seen, err := tx.GetByEmail(ctx, "new@example.com")
		if err != nil || seen == nil {
			t.Errorf("transaction should see its own writes: %v, %v", seen, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	if c, _ := s.GetByEmail(ctx, "new@example.com"); c != nil {
		t.Error("rolled back insert is visible")
	}
	if c, _ := s.GetByEmail(ctx, "keep@example.com"); c.FullName != "Keep" {
		t.Errorf("FullName = %q, rolled back update is visible", c.FullName)
	}
}

func TestContactStore_IngestPipeline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ing := core.NewIngester(s, core.WithClassifier(core.NewClassifier(reference.Default(), nil)))

	payload := "Email,First Name,Contact Tags\n" +
		"ada@example.com,Ada,\"Weight Loss, wellness\"\n" +
		"bob@example.com,Bob,\n" +
		"ada@example.com,Dup,seo\n"
	res, err := ing.IngestCSV(ctx, strings.NewReader(payload), core.IngestOptions{Target: models.BucketHealth, Filename: "B-Gut Summit.csv"})
	if err != nil {
		t.Fatalf("IngestCSV() error = %v", err)
	}
	if res.Created != 2 || res.SkippedDuplicate != 1 {
		t.Errorf("IngestCSV() = %+v", res)
	}

	// a failing row rolls back the whole second batch
	bad := "Email,Name\nbob@example.com,Robert\nc@example.com,C\"\n"
	if _, err := ing.IngestCSV(ctx, strings.NewReader(bad), core.IngestOptions{Target: models.BucketBiz}); err == nil {
		t.Fatal("IngestCSV() with malformed row should fail")
	}
	bob, _ := s.GetByEmail(ctx, "bob@example.com")
	if bob.FullName != "Bob" || bob.InBiz {
		t.Errorf("bob = %+v, second batch should have rolled back", bob)
	}

	cat := core.NewCategorizer(s, core.NewClassifier(reference.Default(), nil), nil)
	run, err := cat.ClassifyUnclassified(ctx)
	if err != nil {
		t.Fatalf("ClassifyUnclassified() error = %v", err)
	}
	if run.Total != 2 || run.Updated != 2 {
		t.Errorf("ClassifyUnclassified() = %+v", run)
	}

	ada, _ := s.GetByEmail(ctx, "ada@example.com")
	if ada.MainBucket != "Health" {
		t.Errorf("ada main = %q, want Health", ada.MainBucket)
	}
	if ada.EngagementLevel != "B" || len(ada.SummitHistory) != 1 || ada.SummitHistory[0] != "Gut Summit" {
		t.Errorf("ada filename defaults = %q %v", ada.EngagementLevel, ada.SummitHistory)
	}
	bob, _ = s.GetByEmail(ctx, "bob@example.com")
	if bob.MainBucket != models.CannotPlace || bob.PersonalityBucket != models.CannotPlace {
		t.Errorf("bob = %q/%q, want Cannot Place", bob.MainBucket, bob.PersonalityBucket)
	}
}

func TestContactStore_HasID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Contact{ID: uuid.New(), Email: "a@example.com"}
	seed(t, s, c)

	if ok, err := s.HasID(ctx, c.ID); err != nil || !ok {
		t.Errorf("HasID(stored) = %v, %v; want true, nil", ok, err)
	}
	if ok, err := s.HasID(ctx, uuid.New()); err != nil || ok {
		t.Errorf("HasID(unknown) = %v, %v; want false, nil", ok, err)
	}
}

func TestContactStore_IngestReusedContactID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ing := core.NewIngester(s, core.WithClassifier(core.NewClassifier(reference.Default(), nil)))

	owner := &models.Contact{ID: uuid.MustParse("7b1c2f0e-58a4-4d1a-9a53-0c6f1b7f2d11"), Email: "owner@example.com"}
	seed(t, s, owner)

	shared := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	payload := "Email,Contact ID\n" +
		"a@example.com," + shared + "\n" +
		"b@example.com," + shared + "\n" +
		"c@example.com," + owner.ID.String() + "\n"
	res, err := ing.IngestCSV(ctx, strings.NewReader(payload), core.IngestOptions{Target: models.BucketHealth})
	if err != nil {
		t.Fatalf("IngestCSV() error = %v", err)
	}
	if res.Created != 3 {
		t.Errorf("IngestCSV() = %+v, want 3 created", res)
	}

	seen := map[uuid.UUID]string{owner.ID: owner.Email}
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		c, err := s.GetByEmail(ctx, email)
		if err != nil || c == nil {
			t.Fatalf("GetByEmail(%s) = %v, %v", email, c, err)
		}
		if !c.InHealth {
			t.Errorf("%s not flagged health", email)
		}
		if prev, dup := seen[c.ID]; dup {
			t.Errorf("%s shares id %v with %s", email, c.ID, prev)
		}
		seen[c.ID] = email
	}
	if a, _ := s.GetByEmail(ctx, "a@example.com"); a.ID.String() != shared {
		t.Errorf("a ID = %v, want %s", a.ID, shared)
	}
}

func TestContactStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		&models.Contact{ID: uuid.New(), Email: "c@example.com", FullName: "Cara", InBiz: true, MainBucket: "Business Operations", EngagementLevel: "A"},
		&models.Contact{ID: uuid.New(), Email: "a@example.com", FullName: "Abe", InHealth: true, MainBucket: "Health", EngagementLevel: "C"},
		&models.Contact{ID: uuid.New(), Email: "b@example.com", FullName: "Bea", InHealth: true, InBiz: true, MainBucket: "Health", EngagementLevel: "B"},
	)

	tests := []struct {
		name string
		opts ListOptions
		want string
	}{
		{"default order", ListOptions{}, "a@example.com,b@example.com,c@example.com"},
		{"skip and limit", ListOptions{Skip: 1, Limit: 1}, "b@example.com"},
		{"skip only", ListOptions{Skip: 2}, "c@example.com"},
		{"main filter", ListOptions{MainBucket: "Health"}, "a@example.com,b@example.com"},
		{"flag filter", ListOptions{Flag: models.BucketBiz}, "b@example.com,c@example.com"},
		{"search name", ListOptions{Search: "ara"}, "c@example.com"},
		{"sort by engagement", ListOptions{SortBy: "engagement_level"}, "c@example.com,b@example.com,a@example.com"},
		{"sort desc", ListOptions{SortBy: "email", Desc: true}, "c@example.com,b@example.com,a@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if e := emails(got); e != tt.want {
				t.Errorf("List() = %s, want %s", e, tt.want)
			}
		})
	}

	var unknown *models.UnknownFieldError
	if _, err := s.List(ctx, ListOptions{SortBy: "password"}); !errors.As(err, &unknown) {
		t.Errorf("List(sort=password) error = %v, want UnknownFieldError", err)
	}
	if _, err := s.List(ctx, ListOptions{SortBy: "tags"}); err == nil {
		t.Error("List(sort=tags) should reject unsortable field")
	}

	n, err := s.Count(ctx, ListOptions{MainBucket: "Health"})
	if err != nil || n != 2 {
		t.Errorf("Count() = %d, %v; want 2", n, err)
	}
}

func TestContactStore_TagCountsAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		&models.Contact{ID: uuid.New(), Email: "a@example.com", Tags: []string{"yoga", "keto"}, InHealth: true, MainBucket: "Health", PersonalityBucket: "Nutrition"},
		&models.Contact{ID: uuid.New(), Email: "b@example.com", Tags: []string{"yoga"}, InHealth: true, InBiz: true, MainBucket: "Health", PersonalityBucket: "Health NED"},
		&models.Contact{ID: uuid.New(), Email: "c@example.com", Tags: []string{"ads"}},
	)

	counts, err := s.TagCounts(ctx)
	if err != nil {
		t.Fatalf("TagCounts() error = %v", err)
	}
	want := []TagCount{{"yoga", 2}, {"ads", 1}, {"keto", 1}}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("TagCounts() mismatch (-want +got):\n%s", diff)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Total != 3 || st.Unclassified != 1 {
		t.Errorf("Stats() total/unclassified = %d/%d", st.Total, st.Unclassified)
	}
	if st.Flags[models.BucketHealth] != 2 || st.Flags[models.BucketBiz] != 1 || st.Flags[models.BucketSurvivalist] != 0 {
		t.Errorf("Stats() flags = %v", st.Flags)
	}
	if diff := cmp.Diff([]LabelCount{{"Health", 2}}, st.ByMain); diff != "" {
		t.Errorf("ByMain mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]LabelCount{{"Health NED", 1}, {"Nutrition", 1}}, st.ByPersonality); diff != "" {
		t.Errorf("ByPersonality mismatch:\n%s", diff)
	}
}

func TestContactStore_StatsEmpty(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Total != 0 || len(st.ByMain) != 0 {
		t.Errorf("Stats() on empty store = %+v", st)
	}
}

func emails(cs []*models.Contact) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Email
	}
	return strings.Join(out, ",")
}
