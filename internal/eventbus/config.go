// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package eventbus

import (
	"strings"
	"time"
)

// PushTopicPrefix is the subject prefix for broadcast push envelopes.
// One subject per event category: push.notifications, push.direct-messages.
const PushTopicPrefix = "push."

// PushTopic returns the broadcast subject for an event category.
func PushTopic(channel string) string {
	return PushTopicPrefix + channel
}

// ChannelFromTopic extracts the event category from a broadcast subject.
// Returns the input unchanged if it does not carry the push prefix.
func ChannelFromTopic(topic string) string {
	return strings.TrimPrefix(topic, PushTopicPrefix)
}

// PublisherConfig holds settings for the JetStream publisher.
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int

	// TrackMsgID enables JetStream duplicate detection keyed on the
	// message UUID.
	TrackMsgID bool
}

// DefaultPublisherConfig returns production-ready publisher defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:             "nats://127.0.0.1:4222",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		TrackMsgID:      true,
	}
}

// SubscriberConfig holds settings for the broadcast subscriber.
type SubscriberConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// DefaultSubscriberConfig returns production-ready subscriber defaults.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		URL:           "nats://127.0.0.1:4222",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		CloseTimeout:  30 * time.Second,
	}
}

// ServerConfig holds settings for the embedded NATS server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns embedded server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,
		JetStreamMaxStore: 10 << 30,
	}
}
