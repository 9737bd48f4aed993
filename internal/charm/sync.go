// ABOUTME: Push/pull of contact records between the local store and charm KV
// ABOUTME: Pulled records fold into local contacts with the merge rules in one transaction
package charm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/models"
)

// KV is the subset of the charm client the sync helpers use
type KV interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	ListKeys(prefix string) ([]string, error)
}

// PullResult counts what a pull did to the local store
type PullResult struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Push writes every contact to the KV store under its contact key
func Push(ctx context.Context, kv KV, contacts []*models.Contact) (int, error) {
	pushed := 0
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return pushed, fmt.Errorf("failed to marshal contact %s: %w", c.Email, err)
		}
		if err := kv.Set(ContactKey(c.Email), data); err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

// Pull reads every remote contact and absorbs it into store. Either all
// records land or none do.
func Pull(ctx context.Context, kv KV, store core.Store) (PullResult, error) {
	var res PullResult

	remote, err := remoteContacts(kv)
	if err != nil {
		return res, err
	}
	res.Total = len(remote)

	err = store.InTx(ctx, func(tx core.Store) error {
		for _, incoming := range remote {
			if err := ctx.Err(); err != nil {
				return err
			}
			if incoming.Email == "" {
				res.Skipped++
				continue
			}

			existing, err := tx.GetByEmail(ctx, incoming.Email)
			if err != nil {
				return err
			}
			merged := core.Absorb(existing, incoming)
			if existing == nil {
				if _, err := core.ClaimFreeID(ctx, tx, merged); err != nil {
					return err
				}
			}
			if err := tx.Upsert(ctx, merged); err != nil {
				return err
			}
			if existing == nil {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return PullResult{Total: res.Total}, fmt.Errorf("pull rolled back: %w", err)
	}
	return res, nil
}

// Wipe deletes every contact key from the KV store
func Wipe(ctx context.Context, kv KV) (int, error) {
	keys, err := kv.ListKeys(ContactPrefix)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := kv.Delete(key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// RemoteCount returns how many contact records the KV store holds
func RemoteCount(kv KV) (int, error) {
	keys, err := kv.ListKeys(ContactPrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func remoteContacts(kv KV) ([]*models.Contact, error) {
	keys, err := kv.ListKeys(ContactPrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]*models.Contact, 0, len(keys))
	for _, key := range keys {
		data, err := kv.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if data == nil {
			continue
		}
		var c models.Contact
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		out = append(out, &c)
	}
	return out, nil
}
