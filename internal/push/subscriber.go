// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/chorusapp/chorus/internal/eventbus"
	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/metrics"
)

// ChannelSubscriber consumes one broadcast channel and hands envelopes to
// the manager. A malformed message is logged, counted and dropped; the
// stream must survive whatever a misbehaving producer sends.
type ChannelSubscriber struct {
	channel    string
	manager    *Manager
	serializer *eventbus.Serializer
}

// NewChannelSubscriber creates a subscriber for the named channel.
func NewChannelSubscriber(channel string, manager *Manager) *ChannelSubscriber {
	return &ChannelSubscriber{
		channel:    channel,
		manager:    manager,
		serializer: eventbus.NewSerializer(),
	}
}

// Channel returns the broadcast channel name.
func (s *ChannelSubscriber) Channel() string {
	return s.channel
}

// Run drains the message stream until it closes or the context ends.
// Messages are acked unconditionally: the broadcast tier is best-effort
// and durability lives in the outbox and notification stores.
func (s *ChannelSubscriber) Run(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.OnMessage(ctx, msg.UUID, msg.Payload)
			msg.Ack()
		}
	}
}

// OnMessage processes one raw broadcast message.
// msgID is the broker message id; for outbox-published events it is the
// record's UUIDv7 and becomes the delivered event id, identical on every
// instance so resume cursors stay meaningful across reconnects.
func (s *ChannelSubscriber) OnMessage(ctx context.Context, msgID string, payload []byte) {
	env, err := s.serializer.Unmarshal(payload)
	if err != nil {
		metrics.BroadcastMalformed.WithLabelValues(s.channel).Inc()
		logging.Warn().Err(err).
			Str("channel", s.channel).
			Msg("Dropping malformed broadcast message")
		return
	}

	metrics.BroadcastMessages.WithLabelValues(s.channel).Inc()

	id := msgID
	if _, err := uuid.Parse(id); err != nil {
		id = NewEventID()
	}

	ev := Event{
		ID:        id,
		Channel:   env.Channel,
		Payload:   env.Payload,
		EmittedAt: env.EmittedAt,
	}

	if err := s.manager.SendToUser(ctx, env.RecipientID, ev); err != nil {
		logging.Error().Err(err).
			Str("channel", s.channel).
			Str("recipient_id", env.RecipientID.String()).
			Msg("Push delivery failed")
	}
}
