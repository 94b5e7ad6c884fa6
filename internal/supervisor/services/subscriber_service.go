// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package services

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/chorusapp/chorus/internal/eventbus"
	"github.com/chorusapp/chorus/internal/logging"
)

// BroadcastFeed matches the fanout subscriber. Satisfied by
// *eventbus.BroadcastSubscriber.
type BroadcastFeed interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// ChannelConsumer drains one broadcast channel. Satisfied by
// *push.ChannelSubscriber.
type ChannelConsumer interface {
	Channel() string
	Run(ctx context.Context, messages <-chan *message.Message)
}

// SubscriberService runs one broadcast channel consumer.
// One service instance per configured channel; a crash in one channel's
// consumer restarts it without disturbing the others.
type SubscriberService struct {
	feed     BroadcastFeed
	consumer ChannelConsumer
	name     string
}

// NewSubscriberService creates the consumer service for one channel.
func NewSubscriberService(feed BroadcastFeed, consumer ChannelConsumer) *SubscriberService {
	return &SubscriberService{
		feed:     feed,
		consumer: consumer,
		name:     "broadcast-subscriber-" + consumer.Channel(),
	}
}

// Serve implements suture.Service.
// Run returns when the message channel closes, e.g. on broker reconnect
// exhaustion; suture then restarts this service, re-establishing the
// subscription.
func (s *SubscriberService) Serve(ctx context.Context) error {
	topic := eventbus.PushTopic(s.consumer.Channel())

	messages, err := s.feed.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	logging.Info().
		Str("channel", s.consumer.Channel()).
		Str("topic", topic).
		Msg("Broadcast subscriber started")

	s.consumer.Run(ctx, messages)
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *SubscriberService) String() string {
	return s.name
}
