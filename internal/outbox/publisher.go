// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/metrics"
)

// Broker is the publication side of the event bus.
// msgID is the outbox record id, stable across retries so the broker can
// deduplicate; key is the aggregate id of the producing domain.
type Broker interface {
	PublishPayload(ctx context.Context, topic, key, msgID string, payload []byte) error
}

// Config holds publisher tuning knobs.
type Config struct {
	// BatchSize bounds how many pending records one cycle selects.
	BatchSize int

	// MaxRetry is the retry budget after the initial attempt.
	MaxRetry int

	// PublishRate caps broker publishes per second (0 = unlimited).
	PublishRate int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize: 100,
		MaxRetry:  3,
	}
}

// Publisher drains pending outbox records to the broker.
//
// Each cycle selects a batch of pending records oldest first and publishes
// them asynchronously; the settlement callback updates the record's status.
// Cycles do not wait for each other's callbacks, so settlement for one
// batch may still be in flight when the next cycle selects - a record
// already being published can be selected again, which is accepted
// at-least-once behavior.
type Publisher struct {
	store   Store
	broker  Broker
	cfg     Config
	limiter *rate.Limiter
	wg      sync.WaitGroup

	// settleLocks serializes read-modify-write settlement per record so
	// a terminal status is never overwritten by a stale concurrent
	// callback. Striped by the first id byte.
	settleLocks [64]sync.Mutex
}

// NewPublisher creates a publisher over the given store and broker.
func NewPublisher(store Store, broker Broker, cfg Config) *Publisher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.PublishRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PublishRate), cfg.PublishRate)
	}

	return &Publisher{
		store:   store,
		broker:  broker,
		cfg:     cfg,
		limiter: limiter,
	}
}

// PublishPendingEvents runs one publish cycle: select up to BatchSize
// pending records and publish each asynchronously. Returns once all
// publishes have been dispatched; settlement continues in the background.
func (p *Publisher) PublishPendingEvents(ctx context.Context) error {
	records, err := p.store.FindPending(ctx, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("select pending records: %w", err)
	}

	metrics.OutboxBatchSize.Observe(float64(len(records)))
	if len(records) == 0 {
		return nil
	}

	logging.Debug().
		Int("batch", len(records)).
		Msg("Publishing pending outbox records")

	for _, rec := range records {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		p.wg.Add(1)
		go func(rec *Record) {
			defer p.wg.Done()

			start := time.Now()
			pubErr := p.broker.PublishPayload(ctx, rec.Topic, rec.AggregateID, rec.ID.String(), rec.Payload)
			if pubErr == nil {
				metrics.RecordBrokerPublish(time.Since(start).Seconds())
			} else {
				metrics.OutboxPublishFailures.Inc()
			}

			p.settle(ctx, rec.ID, pubErr)
		}(rec)
	}

	return nil
}

// settle applies the outcome of one publish attempt. The record is
// re-loaded under a per-record lock: if another callback already moved it
// to a terminal state, this outcome is discarded.
func (p *Publisher) settle(ctx context.Context, id uuid.UUID, pubErr error) {
	mu := &p.settleLocks[id[0]%64]
	mu.Lock()
	defer mu.Unlock()

	rec, err := p.store.Get(ctx, id)
	if err != nil {
		logging.Error().Err(err).
			Str("record_id", id.String()).
			Msg("Failed to load outbox record for settlement")
		return
	}
	if !rec.IsPending() {
		return
	}

	if pubErr == nil {
		rec.MarkPublished(time.Now())
	} else {
		logging.Warn().Err(pubErr).
			Str("record_id", rec.ID.String()).
			Str("topic", rec.Topic).
			Int("retry_count", rec.RetryCount).
			Msg("Broker publish failed")

		if rec.RetryCount >= p.cfg.MaxRetry {
			rec.MarkFailed()
			metrics.OutboxMarkedFailed.Inc()
			logging.Error().
				Str("record_id", rec.ID.String()).
				Str("event_type", rec.EventType).
				Int("retry_count", rec.RetryCount).
				Msg("Outbox record exhausted retries, marked FAILED")
		} else {
			rec.IncrementRetry()
		}
	}

	if err := p.store.Save(ctx, rec); err != nil {
		logging.Error().Err(err).
			Str("record_id", rec.ID.String()).
			Msg("Failed to persist outbox settlement")
	}
}

// CleanupOldEvents purges PUBLISHED records older than the retention
// window. PENDING and FAILED records are kept for operator inspection.
func (p *Publisher) CleanupOldEvents(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)

	deleted, err := p.store.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge published records: %w", err)
	}

	metrics.OutboxCleanupDeleted.Add(float64(deleted))
	if deleted > 0 {
		logging.Info().
			Int("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Outbox retention cleanup complete")
	}
	return nil
}

// Wait blocks until all in-flight settlement callbacks finish.
// Called on shutdown so status updates are not lost.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
