// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package outbox implements the transactional outbox pattern for
// at-least-once event publication.
//
// Domain writes save an event record alongside their own state change; a
// background publisher drains pending records to the broker on a fixed
// cadence. A record moves through exactly one of two terminal states:
//
//	PENDING -> PUBLISHED   broker accepted the payload
//	PENDING -> FAILED      retry budget exhausted
//
// Terminal states are never overwritten. Duplicate publication is possible
// by design (a crash between broker accept and status update re-sends the
// record); consumers deduplicate on the record id, which the broker layer
// carries as the JetStream message id.
package outbox
