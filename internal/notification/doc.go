// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package notification is the durable tier of the push pipeline.
//
// Creating a notification persists it and enqueues an outbox record in
// one step; the outbox publisher later broadcasts it to whichever
// instance holds the receiver's connection. The store also backs the cold
// resume path: clients reconnecting with a cursor older than the replay
// cache re-read their backlog from here.
//
// One id travels the whole pipeline: the notification id is also the
// outbox record id and the broker message id, so the event id a client
// saw live is the same id both resume tiers know it by.
package notification
