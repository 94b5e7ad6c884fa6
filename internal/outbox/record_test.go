// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package outbox

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chorusapp/chorus/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("playlist", "pl-42", "playlist.track-added", "events.playlist", []byte(`{"track":"t1"}`))
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	if rec.Status != StatusPending {
		t.Errorf("new record status = %s, want PENDING", rec.Status)
	}
	if rec.RetryCount != 0 {
		t.Errorf("new record retry count = %d, want 0", rec.RetryCount)
	}
	if rec.ID.Version() != 7 {
		t.Errorf("record id version = %d, want UUIDv7", rec.ID.Version())
	}
	if rec.CreatedAt.IsZero() {
		t.Error("record created_at not set")
	}
}

func TestNewRecord_IDsOrderedByCreation(t *testing.T) {
	a, err := NewRecord("playlist", "pl-1", "playlist.created", "events.playlist", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	b, err := NewRecord("playlist", "pl-2", "playlist.created", "events.playlist", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	if a.ID.String() >= b.ID.String() {
		t.Errorf("ids not monotonically ordered: %s >= %s", a.ID, b.ID)
	}
}

func TestRecord_Validate(t *testing.T) {
	valid := func() *Record {
		rec, err := NewRecord("user", "u-1", "user.followed", "events.user", []byte(`{}`))
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		return rec
	}

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"empty aggregate type", func(r *Record) { r.AggregateType = "" }},
		{"aggregate type too long", func(r *Record) { r.AggregateType = strings.Repeat("a", MaxAggregateTypeLen+1) }},
		{"empty aggregate id", func(r *Record) { r.AggregateID = "" }},
		{"aggregate id too long", func(r *Record) { r.AggregateID = strings.Repeat("a", MaxAggregateIDLen+1) }},
		{"empty event type", func(r *Record) { r.EventType = "" }},
		{"event type too long", func(r *Record) { r.EventType = strings.Repeat("a", MaxEventTypeLen+1) }},
		{"empty topic", func(r *Record) { r.Topic = "" }},
		{"topic too long", func(r *Record) { r.Topic = strings.Repeat("a", MaxTopicLen+1) }},
		{"empty payload", func(r *Record) { r.Payload = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid()
			tt.mutate(rec)
			err := rec.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("error %v does not wrap ErrInvalidRecord", err)
			}
		})
	}
}

func TestRecord_Transitions(t *testing.T) {
	rec, err := NewRecord("user", "u-1", "user.followed", "events.user", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	if !rec.IsPending() {
		t.Fatal("fresh record should be pending")
	}

	rec.IncrementRetry()
	rec.IncrementRetry()
	if rec.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", rec.RetryCount)
	}
	if !rec.IsPending() {
		t.Error("retried record should remain pending")
	}

	now := time.Now()
	rec.MarkPublished(now)
	if rec.Status != StatusPublished {
		t.Errorf("status = %s, want PUBLISHED", rec.Status)
	}
	if rec.PublishedAt == nil || !rec.PublishedAt.Equal(now.UTC()) {
		t.Error("published_at not recorded")
	}
	if rec.IsPending() {
		t.Error("published record should not be pending")
	}
}

func TestRecord_MarkFailedKeepsRetryCount(t *testing.T) {
	rec, err := NewRecord("user", "u-1", "user.followed", "events.user", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	rec.RetryCount = 3
	rec.MarkFailed()
	if rec.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", rec.Status)
	}
	if rec.RetryCount != 3 {
		t.Errorf("retry count = %d, want 3", rec.RetryCount)
	}
}

func TestRecord_SoftDeletedNotPending(t *testing.T) {
	rec, err := NewRecord("user", "u-1", "user.followed", "events.user", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	now := time.Now()
	rec.DeletedAt = &now
	if rec.IsPending() {
		t.Error("soft-deleted record should not be pending")
	}
}
