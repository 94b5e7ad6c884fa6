// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record id does not exist in the store.
var ErrNotFound = errors.New("outbox record not found")

// Store is the durable home of outbox records.
//
// Save is an upsert: domain code calls it to enqueue a new pending record
// in the same logical transaction as its own write, and the publisher calls
// it to persist status transitions.
type Store interface {
	// Save persists the record, validating it first.
	Save(ctx context.Context, rec *Record) error

	// Get loads a record by id. Returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// FindPending returns up to limit pending records, oldest first.
	// Soft-deleted records are excluded.
	FindPending(ctx context.Context, limit int) ([]*Record, error)

	// DeletePublishedBefore purges PUBLISHED records whose publish time is
	// before cutoff and returns how many were removed. PENDING and FAILED
	// records are never touched.
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases store resources.
	Close() error
}
