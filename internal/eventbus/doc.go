// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package eventbus provides the NATS-backed messaging layer for Chorus.
//
// Two distinct delivery modes share one broker:
//
//   - Publisher: durable JetStream publishing used by the outbox publisher.
//     Message IDs carry the outbox record id so JetStream duplicate
//     detection bounds the damage of at-least-once publication.
//
//   - BroadcastSubscriber: plain core-NATS subscriptions with no queue
//     group. Every server instance receives every message on a subject,
//     which is exactly the fanout contract the push layer needs: whichever
//     instance holds a recipient's live connection delivers, the rest
//     no-op.
//
// The bridge between the two is NATS itself: a JetStream subject is
// natively visible to core subscribers of the same subject, so no separate
// relay component exists.
package eventbus
