// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Key layout. The primary key embeds receiver and creation time so one
// prefix iteration yields a receiver's timeline in chronological order;
// the id index resolves direct lookups.
const (
	notifPrefix   = "notif:"
	notifIDPrefix = "notif:id:"
)

// BadgerStore is a Badger-backed notification store.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open Badger database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func timelineKey(n *Notification) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", notifPrefix, n.ReceiverID, n.CreatedAt.UnixNano(), n.ID))
}

func idKey(id uuid.UUID) []byte {
	return []byte(notifIDPrefix + id.String())
}

func receiverKeyPrefix(receiverID uuid.UUID) []byte {
	return []byte(notifPrefix + receiverID.String() + ":")
}

// Save persists the notification under its timeline key and id index.
func (s *BadgerStore) Save(ctx context.Context, n *Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := timelineKey(n)
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(idKey(n.ID), key)
	})
}

// Get loads a notification by id via the id index.
func (s *BadgerStore) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var n *Notification
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = getByID(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func getByID(txn *badger.Txn, id uuid.UUID) (*Notification, error) {
	item, err := txn.Get(idKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var key []byte
	if err := item.Value(func(val []byte) error {
		key = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return nil, err
	}

	item, err = txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var n Notification
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &n)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	return &n, nil
}

// FindByReceiverAfter returns the receiver's notifications created at or
// after the boundary, oldest first.
func (s *BadgerStore) FindByReceiverAfter(ctx context.Context, receiverID uuid.UUID, after time.Time, limit int) ([]*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := receiverKeyPrefix(receiverID)
	seek := []byte(fmt.Sprintf("%s%020d", prefix, after.UnixNano()))

	var out []*Notification
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}

			var n Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return fmt.Errorf("unmarshal notification: %w", err)
			}
			out = append(out, &n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindRecent returns the receiver's newest notifications, newest first.
func (s *BadgerStore) FindRecent(ctx context.Context, receiverID uuid.UUID, limit int) ([]*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := receiverKeyPrefix(receiverID)

	var out []*Notification
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last possible key in the prefix.
		seek := append(append([]byte(nil), prefix...), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}

			var n Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return fmt.Errorf("unmarshal notification: %w", err)
			}
			out = append(out, &n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead stamps the notification as read.
func (s *BadgerStore) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		n, err := getByID(txn, id)
		if err != nil {
			return err
		}
		if n.ReadAt != nil {
			return nil
		}

		n.MarkRead(time.Now())
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		return txn.Set(timelineKey(n), data)
	})
}

// DeleteOlderThan purges notifications created before cutoff.
func (s *BadgerStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(notifPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		type victim struct{ timeline, id []byte }
		var victims []victim

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if len(key) > len(notifIDPrefix) && string(key[:len(notifIDPrefix)]) == notifIDPrefix {
				continue
			}

			var n Notification
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return fmt.Errorf("unmarshal notification: %w", err)
			}
			if !n.CreatedAt.Before(cutoff) {
				continue
			}
			victims = append(victims, victim{timeline: key, id: idKey(n.ID)})
		}

		for _, v := range victims {
			if err := txn.Delete(v.timeline); err != nil {
				return err
			}
			if err := txn.Delete(v.id); err != nil {
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
