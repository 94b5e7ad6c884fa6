// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package outbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Status is the lifecycle state of an outbox record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPublished Status = "PUBLISHED"
	StatusFailed    Status = "FAILED"
)

// Field length bounds enforced at save time.
const (
	MaxAggregateTypeLen = 50
	MaxAggregateIDLen   = 36
	MaxEventTypeLen     = 100
	MaxTopicLen         = 100
)

// ErrInvalidRecord wraps all record validation failures.
var ErrInvalidRecord = errors.New("invalid outbox record")

// Record is a single event awaiting (or past) broker publication.
//
// Payload is opaque JSON owned by the producing domain. RetryCount counts
// failed attempts after the first: a record that keeps failing ends up
// FAILED with RetryCount equal to the configured retry budget.
type Record struct {
	ID            uuid.UUID       `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Topic         string          `json:"topic"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

// NewRecord builds a pending record for the given aggregate event.
// The id is a UUIDv7, so record ids sort by creation time.
func NewRecord(aggregateType, aggregateID, eventType, topic string, payload []byte) (*Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	rec := &Record{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		Payload:       json.RawMessage(payload),
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate checks required fields and length bounds.
func (r *Record) Validate() error {
	switch {
	case r.AggregateType == "":
		return fmt.Errorf("%w: aggregate type is required", ErrInvalidRecord)
	case len(r.AggregateType) > MaxAggregateTypeLen:
		return fmt.Errorf("%w: aggregate type exceeds %d characters", ErrInvalidRecord, MaxAggregateTypeLen)
	case r.AggregateID == "":
		return fmt.Errorf("%w: aggregate id is required", ErrInvalidRecord)
	case len(r.AggregateID) > MaxAggregateIDLen:
		return fmt.Errorf("%w: aggregate id exceeds %d characters", ErrInvalidRecord, MaxAggregateIDLen)
	case r.EventType == "":
		return fmt.Errorf("%w: event type is required", ErrInvalidRecord)
	case len(r.EventType) > MaxEventTypeLen:
		return fmt.Errorf("%w: event type exceeds %d characters", ErrInvalidRecord, MaxEventTypeLen)
	case r.Topic == "":
		return fmt.Errorf("%w: topic is required", ErrInvalidRecord)
	case len(r.Topic) > MaxTopicLen:
		return fmt.Errorf("%w: topic exceeds %d characters", ErrInvalidRecord, MaxTopicLen)
	case len(r.Payload) == 0:
		return fmt.Errorf("%w: payload is required", ErrInvalidRecord)
	}
	return nil
}

// IsPending reports whether the record is still awaiting publication.
func (r *Record) IsPending() bool {
	return r.Status == StatusPending && r.DeletedAt == nil
}

// MarkPublished transitions the record to its successful terminal state.
func (r *Record) MarkPublished(now time.Time) {
	r.Status = StatusPublished
	t := now.UTC()
	r.PublishedAt = &t
}

// MarkFailed transitions the record to its failed terminal state.
// RetryCount is left as-is so the final value records how many retries
// were spent.
func (r *Record) MarkFailed() {
	r.Status = StatusFailed
}

// IncrementRetry records one more failed publish attempt.
func (r *Record) IncrementRetry() {
	r.RetryCount++
}
