// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package services

import (
	"context"
	"time"
)

// Heartbeater pings live connections and evicts the unresponsive.
// Satisfied by *push.Manager.
type Heartbeater interface {
	HeartbeatAll()
}

// HeartbeatService drives connection liveness probes on a fixed cadence.
// Without it, half-open connections linger in the registry and silently
// eat events until their recipient reconnects.
type HeartbeatService struct {
	heartbeater Heartbeater
	interval    time.Duration
	name        string
}

// NewHeartbeatService creates the heartbeat service.
func NewHeartbeatService(heartbeater Heartbeater, interval time.Duration) *HeartbeatService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HeartbeatService{
		heartbeater: heartbeater,
		interval:    interval,
		name:        "push-heartbeat",
	}
}

// Serve implements suture.Service.
func (s *HeartbeatService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.heartbeater.HeartbeatAll()
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *HeartbeatService) String() string {
	return s.name
}
