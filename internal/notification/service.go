// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chorusapp/chorus/internal/eventbus"
	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/outbox"
)

const aggregateType = "notification"

// Service creates notifications and enqueues their delivery.
//
// Notify writes the notification and its outbox record back to back; the
// broker is never touched on this path, so a broker outage cannot fail a
// domain write. The outbox publisher picks the record up on its next
// cycle.
type Service struct {
	store  Store
	outbox outbox.Store
}

// NewService wires the notification store to the outbox.
func NewService(store Store, outboxStore outbox.Store) *Service {
	return &Service{store: store, outbox: outboxStore}
}

// Notify persists a notification for the receiver and enqueues it on the
// channel's broadcast topic.
func (s *Service) Notify(ctx context.Context, receiverID uuid.UUID, channel, notifType string, payload []byte) (*Notification, error) {
	n, err := New(receiverID, channel, notifType, payload)
	if err != nil {
		return nil, err
	}

	env := &eventbus.Envelope{
		RecipientID: receiverID,
		Channel:     channel,
		Payload:     n.Payload,
		EmittedAt:   n.CreatedAt,
	}
	body, err := eventbus.NewSerializer().Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("build push envelope: %w", err)
	}

	rec, err := outbox.NewRecord(aggregateType, n.ID.String(), notifType, eventbus.PushTopic(channel), body)
	if err != nil {
		return nil, fmt.Errorf("build outbox record: %w", err)
	}
	// The notification id rides the whole pipeline: it becomes the broker
	// message id and the delivered event id, so resume cursors resolve
	// against the store without translation.
	rec.ID = n.ID

	if err := s.store.Save(ctx, n); err != nil {
		return nil, fmt.Errorf("save notification: %w", err)
	}
	if err := s.outbox.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("enqueue outbox record: %w", err)
	}

	logging.Debug().
		Str("notification_id", n.ID.String()).
		Str("receiver_id", receiverID.String()).
		Str("channel", channel).
		Str("type", notifType).
		Msg("Notification enqueued")
	return n, nil
}

// MarkRead stamps a notification as read.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkRead(ctx, id)
}

// Recent returns the receiver's newest notifications, newest first.
func (s *Service) Recent(ctx context.Context, receiverID uuid.UUID, limit int) ([]*Notification, error) {
	return s.store.FindRecent(ctx, receiverID, limit)
}

// Cleanup purges notifications older than the retention window.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	return s.store.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
}
