// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package api provides HTTP routing and handlers using the chi router.
//
// The realtime surface is a single WebSocket endpoint: clients connect
// with their recipient id and optionally a last_event_id cursor to resume
// a dropped stream. A small notification API backs listing and read
// receipts, and the usual health and metrics endpoints round it out.
package api
