// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/chorusapp/chorus/internal/eventbus"
	"github.com/chorusapp/chorus/internal/outbox"
)

func newTestService(t *testing.T) (*Service, *BadgerStore, *outbox.BadgerStore) {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewBadgerStore(db)
	outboxStore := outbox.NewBadgerStore(db)
	return NewService(store, outboxStore), store, outboxStore
}

func TestService_NotifyPersistsAndEnqueues(t *testing.T) {
	svc, store, outboxStore := newTestService(t)
	ctx := context.Background()
	receiver := uuid.New()

	n, err := svc.Notify(ctx, receiver, "notifications", "user.followed", []byte(`{"who":"alice"}`))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if _, err := store.Get(ctx, n.ID); err != nil {
		t.Errorf("notification not persisted: %v", err)
	}

	rec, err := outboxStore.Get(ctx, n.ID)
	if err != nil {
		t.Fatalf("outbox record should share the notification id: %v", err)
	}
	if rec.Status != outbox.StatusPending {
		t.Errorf("record status = %s, want PENDING", rec.Status)
	}
	if rec.Topic != "push.notifications" {
		t.Errorf("record topic = %q", rec.Topic)
	}
	if rec.AggregateID != n.ID.String() {
		t.Errorf("record aggregate id = %q", rec.AggregateID)
	}

	env, err := eventbus.NewSerializer().Unmarshal(rec.Payload)
	if err != nil {
		t.Fatalf("record payload is not a push envelope: %v", err)
	}
	if env.RecipientID != receiver {
		t.Errorf("envelope recipient = %s, want %s", env.RecipientID, receiver)
	}
	if string(env.Payload) != `{"who":"alice"}` {
		t.Errorf("envelope payload = %s", env.Payload)
	}
}

func TestService_NotifyRejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		receiver uuid.UUID
		channel  string
		typ      string
		payload  []byte
	}{
		{"nil receiver", uuid.Nil, "notifications", "user.followed", []byte(`{}`)},
		{"empty channel", uuid.New(), "", "user.followed", []byte(`{}`)},
		{"empty type", uuid.New(), "notifications", "", []byte(`{}`)},
		{"empty payload", uuid.New(), "notifications", "user.followed", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Notify(ctx, tt.receiver, tt.channel, tt.typ, tt.payload)
			if !errors.Is(err, ErrInvalidNotification) {
				t.Errorf("err = %v, want ErrInvalidNotification", err)
			}
		})
	}
}

func TestService_Cleanup(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	old := mustNotification(t, uuid.New(), `{}`)
	old.CreatedAt = time.Now().UTC().Add(-60 * 24 * time.Hour)
	if err := store.Save(ctx, old); err != nil {
		t.Fatalf("Save: %v", err)
	}

	deleted, err := svc.Cleanup(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestEventSource_EventsAfter(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	receiver := uuid.New()

	n1, err := svc.Notify(ctx, receiver, "notifications", "user.followed", []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	n2, err := svc.Notify(ctx, receiver, "notifications", "user.followed", []byte(`{"n":2}`))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	source := NewEventSource(store)
	events, err := source.EventsAfter(ctx, receiver, n1.CreatedAt)
	if err != nil {
		t.Fatalf("EventsAfter: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != n1.ID.String() || events[1].ID != n2.ID.String() {
		t.Error("events out of order or wrong ids")
	}
	if events[0].Channel != "notifications" {
		t.Errorf("event channel = %q", events[0].Channel)
	}
}
