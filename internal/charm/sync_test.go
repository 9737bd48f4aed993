// ABOUTME: Tests for contact push/pull against an in-memory KV and SQLite store
package charm

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/contact-compass/internal/models"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

type memKV struct {
	data   map[string][]byte
	setErr error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Set(key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Get(key string) ([]byte, error) { return m.data[key], nil }

func (m *memKV) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func (m *memKV) ListKeys(prefix string) ([]string, error) {
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func newStore(t *testing.T) *sqlite.ContactStore {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewContactStore(db)
}

var ts = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func person(email string, tags ...string) *models.Contact {
	return &models.Contact{
		ID:        uuid.New(),
		Email:     email,
		Tags:      tags,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestPush(t *testing.T) {
	kv := newMemKV()
	a := person("a@x.com", "yoga")
	a.InHealth = true

	n, err := Push(context.Background(), kv, []*models.Contact{a, person("b@x.com")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var got models.Contact
	require.NoError(t, json.Unmarshal(kv.data["contact:a@x.com"], &got))
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, got.InHealth)
	assert.Equal(t, []string{"yoga"}, got.Tags)
}

func TestPush_StopsOnError(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("offline")
	n, err := Push(context.Background(), kv, []*models.Contact{person("a@x.com")})
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestPull_MergesIntoExisting(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	local := person("a@x.com", "yoga")
	local.InBiz = true
	local.MainBucket = "Business Operations"
	local.PersonalityBucket = "Marketing"
	require.NoError(t, store.Upsert(ctx, local))

	kv := newMemKV()
	remote := person("a@x.com", "keto")
	remote.InHealth = true
	remote.MainBucket = "Health"
	remote.PersonalityBucket = "Nutrition"
	_, err := Push(ctx, kv, []*models.Contact{remote, person("new@x.com", "ads")})
	require.NoError(t, err)

	res, err := Pull(ctx, kv, store)
	require.NoError(t, err)
	assert.Equal(t, PullResult{Total: 2, Created: 1, Updated: 1}, res)

	got, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, local.ID, got.ID)
	assert.Equal(t, []string{"yoga", "keto"}, got.Tags)
	assert.True(t, got.InBiz)
	assert.True(t, got.InHealth)
	assert.Equal(t, "Business Operations", got.MainBucket)
	assert.Equal(t, "Marketing", got.PersonalityBucket)

	created, err := store.Get(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ads"}, created.Tags)
}

func TestPull_RemoteIDOwnedByAnotherEmail(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	local := person("a@x.com", "yoga")
	require.NoError(t, store.Upsert(ctx, local))

	kv := newMemKV()
	renamed := person("b@x.com", "keto")
	renamed.ID = local.ID
	twin := person("c@x.com")
	twin.ID = local.ID
	_, err := Push(ctx, kv, []*models.Contact{renamed, twin})
	require.NoError(t, err)

	res, err := Pull(ctx, kv, store)
	require.NoError(t, err)
	assert.Equal(t, PullResult{Total: 2, Created: 2}, res)

	a, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	b, err := store.Get(ctx, "b@x.com")
	require.NoError(t, err)
	c, err := store.Get(ctx, "c@x.com")
	require.NoError(t, err)
	assert.Equal(t, local.ID, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.NotEqual(t, b.ID, c.ID)
	assert.Equal(t, []string{"keto"}, b.Tags)
}

func TestPull_RollsBackOnBadRecord(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	kv := newMemKV()
	_, err := Push(ctx, kv, []*models.Contact{person("a@x.com")})
	require.NoError(t, err)
	kv.data["contact:zz@x.com"] = []byte("{not json")

	_, err = Pull(ctx, kv, store)
	require.Error(t, err)

	n, err := store.Count(ctx, sqlite.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPull_SkipsRecordsWithoutEmail(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	kv := newMemKV()
	kv.data["contact:"] = []byte(`{"email":""}`)

	res, err := Pull(ctx, kv, store)
	require.NoError(t, err)
	assert.Equal(t, PullResult{Total: 1, Skipped: 1}, res)
}

func TestWipeAndRemoteCount(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	kv.data["other:key"] = []byte("keep")
	_, err := Push(ctx, kv, []*models.Contact{person("a@x.com"), person("b@x.com")})
	require.NoError(t, err)

	n, err := RemoteCount(kv)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deleted, err := Wipe(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	n, err = RemoteCount(kv)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, kv.data, "other:key")
}

func TestContactKey(t *testing.T) {
	assert.Equal(t, "contact:A@x.com", ContactKey("A@x.com"))
}
