// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"context"
	"fmt"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReplayCache_AfterCursor(t *testing.T) {
	cache := NewBadgerReplayCache(newTestDB(t), 30*time.Minute, 100)
	ctx := context.Background()
	recipient := uuid.New()

	var ids []string
	for i := 0; i < 5; i++ {
		ev := Event{
			ID:      NewEventID(),
			Channel: "notifications",
			Payload: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		}
		ids = append(ids, ev.ID)
		if err := cache.Record(ctx, recipient, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	events, covered, err := cache.After(ctx, recipient, ids[2])
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if !covered {
		t.Error("cursor present in cache should report covered")
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != ids[3] || events[1].ID != ids[4] {
		t.Errorf("replay order wrong: %s, %s", events[0].ID, events[1].ID)
	}
}

func TestReplayCache_UnknownCursorNotCovered(t *testing.T) {
	cache := NewBadgerReplayCache(newTestDB(t), 30*time.Minute, 100)
	ctx := context.Background()
	recipient := uuid.New()

	// Cursor predates everything cached: coverage cannot be proven.
	cursor := NewEventID()
	if err := cache.Record(ctx, recipient, testEvent(`{}`)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	_, covered, err := cache.After(ctx, recipient, cursor)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if covered {
		t.Error("unknown cursor should not report covered")
	}
}

func TestReplayCache_PerRecipientIsolation(t *testing.T) {
	cache := NewBadgerReplayCache(newTestDB(t), 30*time.Minute, 100)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	cursor := testEvent(`{"for":"alice"}`)
	if err := cache.Record(ctx, alice, cursor); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := cache.Record(ctx, alice, testEvent(`{"for":"alice"}`)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := cache.Record(ctx, bob, testEvent(`{"for":"bob"}`)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, covered, err := cache.After(ctx, alice, cursor.ID)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if !covered || len(events) != 1 {
		t.Errorf("alice sees %d events (covered=%v), want 1 of her own", len(events), covered)
	}
}

func TestReplayCache_BoundsEventsPerRecipient(t *testing.T) {
	maxEvents := 5
	cache := NewBadgerReplayCache(newTestDB(t), 30*time.Minute, maxEvents)
	ctx := context.Background()
	recipient := uuid.New()

	var ids []string
	for i := 0; i < 12; i++ {
		ev := testEvent(fmt.Sprintf(`{"n":%d}`, i))
		ids = append(ids, ev.ID)
		if err := cache.Record(ctx, recipient, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	// Oldest entries are evicted: only the most recent maxEvents remain,
	// so the oldest surviving id still proves coverage.
	oldestKept := ids[len(ids)-maxEvents]
	events, covered, err := cache.After(ctx, recipient, oldestKept)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if !covered {
		t.Error("oldest kept event should still be cached")
	}
	if len(events) != maxEvents-1 {
		t.Errorf("got %d events after oldest kept, want %d", len(events), maxEvents-1)
	}

	_, covered, err = cache.After(ctx, recipient, ids[0])
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if covered {
		t.Error("evicted event should no longer prove coverage")
	}
}

func TestReplayCache_Purge(t *testing.T) {
	cache := NewBadgerReplayCache(newTestDB(t), 30*time.Minute, 100)
	ctx := context.Background()
	recipient := uuid.New()

	ev := testEvent(`{}`)
	if err := cache.Record(ctx, recipient, ev); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := cache.Purge(ctx, recipient); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	events, covered, err := cache.After(ctx, recipient, ev.ID)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if covered || len(events) != 0 {
		t.Error("purged recipient should have an empty cache")
	}
}
