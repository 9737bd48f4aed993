// ABOUTME: In-memory Store used by the core tests
// ABOUTME: Snapshots on InTx so a failed batch leaves no trace

package core

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/harper/contact-compass/internal/models"
)

var errInjected = errors.New("injected store failure")

type memStore struct {
	contacts map[string]*models.Contact

	failUpsertEmail string
	failSetEmail    string
	upserts         int
	sets            int
}

func newMemStore(seed ...*models.Contact) *memStore {
	s := &memStore{contacts: make(map[string]*models.Contact)}
	for _, c := range seed {
		s.contacts[c.Email] = c.Clone()
	}
	return s
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*models.Contact, error) {
	c, ok := s.contacts[email]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (s *memStore) HasID(ctx context.Context, id uuid.UUID) (bool, error) {
	for _, c := range s.contacts {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Upsert(ctx context.Context, c *models.Contact) error {
	if s.failUpsertEmail != "" && c.Email == s.failUpsertEmail {
		return errInjected
	}
	s.upserts++
	s.contacts[c.Email] = c.Clone()
	return nil
}

func (s *memStore) list(keep func(*models.Contact) bool) []*models.Contact {
	var out []*models.Contact
	for _, c := range s.contacts {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (s *memStore) ListUnclassified(ctx context.Context) ([]*models.Contact, error) {
	return s.list(func(c *models.Contact) bool { return c.MainBucket == "" }), nil
}

func (s *memStore) ListMissingPersonality(ctx context.Context) ([]*models.Contact, error) {
	return s.list(func(c *models.Contact) bool { return c.PersonalityBucket == "" }), nil
}

func (s *memStore) ListByLabels(ctx context.Context, labels []string) ([]*models.Contact, error) {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	return s.list(func(c *models.Contact) bool {
		return want[c.MainBucket] || want[c.PersonalityBucket]
	}), nil
}

func (s *memStore) SetClassification(ctx context.Context, id uuid.UUID, main, personality string) error {
	for _, c := range s.contacts {
		if c.ID != id {
			continue
		}
		if s.failSetEmail != "" && c.Email == s.failSetEmail {
			return errInjected
		}
		s.sets++
		c.MainBucket, c.PersonalityBucket = main, personality
		return nil
	}
	return errors.New("contact not found")
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	snapshot := make(map[string]*models.Contact, len(s.contacts))
	for k, c := range s.contacts {
		snapshot[k] = c.Clone()
	}
	if err := fn(s); err != nil {
		s.contacts = snapshot
		return err
	}
	return nil
}

func (s *memStore) get(email string) *models.Contact {
	return s.contacts[email]
}
