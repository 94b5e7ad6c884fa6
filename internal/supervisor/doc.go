// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package supervisor builds the suture supervision tree for Chorus.
//
// The tree has three layers with independent failure budgets:
//   - data: outbox publish loop, retention janitors
//   - messaging: embedded NATS, broadcast subscribers, heartbeat
//   - api: HTTP server
//
// A crashing broadcast subscriber restarts with backoff without taking
// down the HTTP server or the outbox loop.
package supervisor
