// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Key layout. Index keys embed a zero-padded nanosecond timestamp so that
// Badger's lexicographic iteration order is chronological.
const (
	recPrefix       = "outbox:rec:"
	pendingPrefix   = "outbox:idx:pending:"
	publishedPrefix = "outbox:idx:published:"
)

// BadgerStore is a Badger-backed outbox store.
//
// Each record is stored under its id plus one index entry per non-terminal
// concern: a pending index driving FindPending and a published index
// driving retention cleanup. Index maintenance happens in the same Badger
// transaction as the record write.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open Badger database.
// The database handle is shared with other stores; Close is a no-op here
// and the owner closes the database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func recKey(id uuid.UUID) []byte {
	return []byte(recPrefix + id.String())
}

func pendingKey(rec *Record) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", pendingPrefix, rec.CreatedAt.UnixNano(), rec.ID))
}

func publishedKey(rec *Record) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", publishedPrefix, rec.PublishedAt.UnixNano(), rec.ID))
}

// Save validates and persists the record, maintaining both indices.
func (s *BadgerStore) Save(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal outbox record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if prev, err := getRecord(txn, rec.ID); err == nil {
			if err := txn.Delete(pendingKey(prev)); err != nil {
				return err
			}
			if prev.PublishedAt != nil {
				if err := txn.Delete(publishedKey(prev)); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := txn.Set(recKey(rec.ID), data); err != nil {
			return err
		}
		if rec.IsPending() {
			if err := txn.Set(pendingKey(rec), nil); err != nil {
				return err
			}
		}
		if rec.Status == StatusPublished && rec.PublishedAt != nil {
			if err := txn.Set(publishedKey(rec), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get loads a record by id.
func (s *BadgerStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func getRecord(txn *badger.Txn, id uuid.UUID) (*Record, error) {
	item, err := txn.Get(recKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal outbox record: %w", err)
	}
	return &rec, nil
}

// FindPending returns up to limit pending records, oldest first.
func (s *BadgerStore) FindPending(ctx context.Context, limit int) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(pendingPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(records) < limit; it.Next() {
			key := it.Item().Key()
			id, err := idFromIndexKey(key, pendingPrefix)
			if err != nil {
				continue
			}

			rec, err := getRecord(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if rec.IsPending() {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeletePublishedBefore purges PUBLISHED records older than cutoff.
func (s *BadgerStore) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	boundary := fmt.Sprintf("%s%020d", publishedPrefix, cutoff.UnixNano())

	deleted := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(publishedPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= boundary {
				break
			}

			id, err := idFromIndexKey(key, publishedPrefix)
			if err != nil {
				continue
			}
			if err := txn.Delete(recKey(id)); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Close implements Store. The shared Badger handle is closed by its owner.
func (s *BadgerStore) Close() error {
	return nil
}

// idFromIndexKey extracts the record id from an index key of the form
// <prefix><nanos>:<uuid>.
func idFromIndexKey(key []byte, prefix string) (uuid.UUID, error) {
	rest := string(key[len(prefix):])
	if len(rest) < 21 || rest[20] != ':' {
		return uuid.Nil, fmt.Errorf("malformed index key %q", key)
	}
	return uuid.Parse(rest[21:])
}
