// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ReplayCache is the warm tier of resume: a bounded, expiring record of
// recently sent events per recipient.
type ReplayCache interface {
	// Record remembers an event for later replay.
	Record(ctx context.Context, recipientID uuid.UUID, ev Event) error

	// After returns cached events newer than the cursor, oldest first.
	// covered reports whether the cursor itself is still cached; when it
	// is not, the cache cannot prove the gap is fully represented and the
	// caller must fall back to the durable store.
	After(ctx context.Context, recipientID uuid.UUID, cursor string) (events []Event, covered bool, err error)

	// Purge drops all cached events for a recipient.
	Purge(ctx context.Context, recipientID uuid.UUID) error
}

const replayPrefix = "replay:"

// BadgerReplayCache stores replay entries under
// replay:<recipient>:<event-id>. UUIDv7 event ids make lexicographic key
// order chronological, so prefix iteration yields replay order directly.
type BadgerReplayCache struct {
	db        *badger.DB
	ttl       time.Duration
	maxEvents int
}

// NewBadgerReplayCache wraps an open Badger database.
// ttl bounds how stale a replayable event may be; maxEvents bounds entries
// per recipient, evicting oldest first.
func NewBadgerReplayCache(db *badger.DB, ttl time.Duration, maxEvents int) *BadgerReplayCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxEvents < 1 {
		maxEvents = 100
	}
	return &BadgerReplayCache{db: db, ttl: ttl, maxEvents: maxEvents}
}

func replayKey(recipientID uuid.UUID, eventID string) []byte {
	return []byte(replayPrefix + recipientID.String() + ":" + eventID)
}

func recipientPrefix(recipientID uuid.UUID) []byte {
	return []byte(replayPrefix + recipientID.String() + ":")
}

// Record caches the event and evicts the oldest entries beyond the
// per-recipient bound.
func (c *BadgerReplayCache) Record(ctx context.Context, recipientID uuid.UUID, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal replay event: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(replayKey(recipientID, ev.ID), data).WithTTL(c.ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = recipientPrefix(recipientID)

		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}

		// The new entry is not visible to this iterator yet, so the bound
		// is maxEvents-1 for what is already there.
		for len(keys) > c.maxEvents-1 {
			if err := txn.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

// After returns cached events strictly newer than the cursor.
func (c *BadgerReplayCache) After(ctx context.Context, recipientID uuid.UUID, cursor string) ([]Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var (
		events  []Event
		covered bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recipientPrefix(recipientID)

		it := txn.NewIterator(opts)
		defer it.Close()

		prefixLen := len(recipientPrefix(recipientID))
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			eventID := string(item.Key()[prefixLen:])

			if eventID == cursor {
				covered = true
				continue
			}
			if eventID < cursor {
				continue
			}

			var ev Event
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return fmt.Errorf("unmarshal replay event: %w", err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return events, covered, nil
}

// Purge drops all cached events for the recipient.
func (c *BadgerReplayCache) Purge(ctx context.Context, recipientID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = recipientPrefix(recipientID)

		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
