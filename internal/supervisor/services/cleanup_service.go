// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package services

import (
	"context"
	"time"

	"github.com/chorusapp/chorus/internal/logging"
)

// CleanupFunc is one retention sweep.
type CleanupFunc func(ctx context.Context) error

// CleanupService runs a retention sweep on a fixed cadence.
// One sweep runs immediately at startup so a long-stopped instance does
// not wait a full interval to catch up on retention.
type CleanupService struct {
	name     string
	interval time.Duration
	sweep    CleanupFunc
}

// NewCleanupService creates a janitor running sweep every interval.
func NewCleanupService(name string, interval time.Duration, sweep CleanupFunc) *CleanupService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CleanupService{
		name:     name,
		interval: interval,
		sweep:    sweep,
	}
}

// Serve implements suture.Service.
func (s *CleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *CleanupService) run(ctx context.Context) {
	if err := s.sweep(ctx); err != nil {
		logging.Error().Err(err).
			Str("janitor", s.name).
			Msg("Retention sweep failed")
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *CleanupService) String() string {
	return s.name
}
