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

// OutboxPublisher matches the outbox publisher's drain lifecycle.
// Satisfied by *outbox.Publisher.
type OutboxPublisher interface {
	PublishPendingEvents(ctx context.Context) error
	Wait()
}

// OutboxService drives the outbox publish loop on a fixed cadence.
//
// A failing cycle is logged and the loop keeps ticking: the usual cause is
// a transient store or broker problem, and pending records simply wait for
// the next tick. On shutdown the service waits for in-flight settlement
// callbacks so status updates are not lost.
type OutboxService struct {
	publisher OutboxPublisher
	interval  time.Duration
	name      string
}

// NewOutboxService creates the publish loop service.
func NewOutboxService(publisher OutboxPublisher, interval time.Duration) *OutboxService {
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxService{
		publisher: publisher,
		interval:  interval,
		name:      "outbox-publisher",
	}
}

// Serve implements suture.Service.
func (s *OutboxService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().
		Dur("interval", s.interval).
		Msg("Outbox publish loop started")

	for {
		select {
		case <-ctx.Done():
			s.publisher.Wait()
			return ctx.Err()
		case <-ticker.C:
			if err := s.publisher.PublishPendingEvents(ctx); err != nil {
				logging.Error().Err(err).Msg("Outbox publish cycle failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *OutboxService) String() string {
	return s.name
}
