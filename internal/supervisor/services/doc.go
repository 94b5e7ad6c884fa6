// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package services provides suture.Service wrappers for Chorus components.
//
// Each wrapper adapts a component's lifecycle (blocking call, Start/Stop
// pair, or periodic tick) to suture's context-aware Serve pattern, with
// small interfaces so tests can substitute fakes.
package services
