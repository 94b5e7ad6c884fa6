// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package metrics provides Prometheus instrumentation for the outbox
// publisher and the push fanout:
//   - Outbox publish throughput, retries and terminal failures
//   - Push delivery counters and active connection gauge
//   - Replay cache efficiency on reconnect resume
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbox Metrics
	OutboxPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_outbox_published_total",
			Help: "Total number of outbox records published to the broker",
		},
	)

	OutboxPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_outbox_publish_failures_total",
			Help: "Total number of failed broker publish attempts (transient, will retry)",
		},
	)

	OutboxMarkedFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_outbox_marked_failed_total",
			Help: "Total number of outbox records marked FAILED after exhausting retries",
		},
	)

	OutboxCleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_outbox_cleanup_deleted_total",
			Help: "Total number of published outbox records purged by retention cleanup",
		},
	)

	OutboxPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chorus_outbox_publish_duration_seconds",
			Help:    "Duration of a single broker publish attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chorus_outbox_batch_size",
			Help:    "Number of pending records selected per publish cycle",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Push Fanout Metrics
	PushActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_push_connections_active",
			Help: "Current number of live push connections on this instance",
		},
	)

	PushEventsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_push_events_sent_total",
			Help: "Push events sent successfully over live connections",
		},
	)

	PushEventsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_push_events_failed_total",
			Help: "Push events that failed to send (connection evicted)",
		},
	)

	PushEventsResent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_push_events_resent_total",
			Help: "Push events replayed on reconnect resume",
		},
		[]string{"source"}, // "cache", "store"
	)

	PushHeartbeatFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_push_heartbeat_failures_total",
			Help: "Heartbeats that failed and evicted a connection",
		},
	)

	// Broadcast Channel Metrics
	BroadcastMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_broadcast_messages_total",
			Help: "Broadcast messages received per channel on this instance",
		},
		[]string{"channel"},
	)

	BroadcastMalformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_broadcast_malformed_total",
			Help: "Broadcast messages dropped due to deserialization failure",
		},
		[]string{"channel"},
	)

	// Replay Cache Metrics
	ReplayCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_replay_cache_hits_total",
			Help: "Resume requests served from the replay cache (warm path)",
		},
	)

	ReplayCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_replay_cache_misses_total",
			Help: "Resume requests that fell back to the durable store (cold path)",
		},
	)
)

// RecordBrokerPublish records a successful broker publish with its duration.
func RecordBrokerPublish(seconds float64) {
	OutboxPublishedTotal.Inc()
	OutboxPublishDuration.Observe(seconds)
}
