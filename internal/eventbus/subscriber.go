// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package eventbus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// BroadcastSubscriber wraps a Watermill core-NATS subscriber.
//
// JetStream is deliberately disabled and no queue group is configured:
// every instance subscribing to a subject receives every message published
// to it. Durability is not this subscriber's job - the outbox table and
// the notification store are the durable tiers; the broadcast channel only
// has to reach whichever instances are alive right now.
type BroadcastSubscriber struct {
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewBroadcastSubscriber creates a fanout subscriber for push envelopes.
func NewBroadcastSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (*BroadcastSubscriber, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:          cfg.URL,
		CloseTimeout: cfg.CloseTimeout,
		NatsOptions:  natsOpts,
		Unmarshaler:  &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			// Core NATS: no stream, no queue group, pure fanout.
			Disabled: true,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &BroadcastSubscriber{
		subscriber: sub,
		logger:     logger,
	}, nil
}

// Subscribe returns a channel of messages for the given topic.
// The channel is closed when the context is canceled or the subscriber is
// closed.
func (s *BroadcastSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, topic)
}

// Close gracefully shuts down the subscriber.
func (s *BroadcastSubscriber) Close() error {
	return s.subscriber.Close()
}
