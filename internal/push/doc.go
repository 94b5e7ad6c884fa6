// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package push implements realtime delivery to connected clients.
//
// Every instance subscribes to every broadcast channel and sees every
// envelope; an instance delivers only to recipients connected locally and
// drops the rest. This keeps producers unaware of instance topology: they
// publish once, and whichever instance holds the recipient's connection
// delivers.
//
// Reconnecting clients resume from a cursor (the id of the last event they
// received). Resume is two-tier: a warm replay cache serves short gaps, and
// the durable notification store backs longer ones. Event ids are UUIDv7,
// so the cursor doubles as a timestamp for the cold path.
package push
