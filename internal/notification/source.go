// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chorusapp/chorus/internal/push"
)

// coldResumeLimit bounds how much backlog one resume can pull. A client
// further behind than this re-syncs through the regular listing API.
const coldResumeLimit = 500

// EventSource adapts the notification store to the push cold resume path.
type EventSource struct {
	store Store
}

// NewEventSource wraps the store for resume queries.
func NewEventSource(store Store) *EventSource {
	return &EventSource{store: store}
}

// EventsAfter returns the receiver's notifications at or after the
// boundary as push events, oldest first.
func (s *EventSource) EventsAfter(ctx context.Context, recipientID uuid.UUID, after time.Time) ([]push.Event, error) {
	notifs, err := s.store.FindByReceiverAfter(ctx, recipientID, after, coldResumeLimit)
	if err != nil {
		return nil, err
	}

	events := make([]push.Event, 0, len(notifs))
	for _, n := range notifs {
		events = append(events, push.Event{
			ID:        n.ID.String(),
			Channel:   n.Channel,
			Payload:   n.Payload,
			EmittedAt: n.CreatedAt,
		})
	}
	return events, nil
}
