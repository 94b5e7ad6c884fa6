// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown notification ids.
var ErrNotFound = errors.New("notification not found")

// Store is the durable home of notifications.
type Store interface {
	// Save persists the notification.
	Save(ctx context.Context, n *Notification) error

	// Get loads a notification by id.
	Get(ctx context.Context, id uuid.UUID) (*Notification, error)

	// FindByReceiverAfter returns the receiver's notifications created at
	// or after the boundary, oldest first, up to limit (0 = unlimited).
	FindByReceiverAfter(ctx context.Context, receiverID uuid.UUID, after time.Time, limit int) ([]*Notification, error)

	// FindRecent returns the receiver's newest notifications, newest
	// first, up to limit.
	FindRecent(ctx context.Context, receiverID uuid.UUID, limit int) ([]*Notification, error)

	// MarkRead stamps a notification as read.
	MarkRead(ctx context.Context, id uuid.UUID) error

	// DeleteOlderThan purges notifications created before cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
