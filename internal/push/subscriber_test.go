// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/chorusapp/chorus/internal/eventbus"
)

func envelopeBytes(t *testing.T, recipientID uuid.UUID) []byte {
	t.Helper()
	data, err := eventbus.NewSerializer().Marshal(&eventbus.Envelope{
		RecipientID: recipientID,
		Channel:     "notifications",
		Payload:     json.RawMessage(`{"title":"hi"}`),
		EmittedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func TestChannelSubscriber_DeliversToLocalRecipient(t *testing.T) {
	mgr, _ := newTestManager(t)
	sub := NewChannelSubscriber("notifications", mgr)
	ctx := context.Background()

	recipient := uuid.New()
	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, recipient, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	msgID := NewEventID()
	sub.OnMessage(ctx, msgID, envelopeBytes(t, recipient))

	got := conn.received()
	if len(got) != 2 {
		t.Fatalf("got %d events, want marker plus delivery", len(got))
	}
	if got[1].ID != msgID {
		t.Errorf("delivered event id = %s, want broker message id %s", got[1].ID, msgID)
	}
	if got[1].Channel != "notifications" {
		t.Errorf("delivered channel = %q", got[1].Channel)
	}
}

func TestChannelSubscriber_IgnoresRemoteRecipient(t *testing.T) {
	mgr, _ := newTestManager(t)
	sub := NewChannelSubscriber("notifications", mgr)
	ctx := context.Background()

	local := uuid.New()
	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, local, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	sub.OnMessage(ctx, NewEventID(), envelopeBytes(t, uuid.New()))

	if len(conn.received()) != 1 {
		t.Error("envelope for another recipient must not be delivered locally")
	}
}

func TestChannelSubscriber_MalformedThenValid(t *testing.T) {
	mgr, _ := newTestManager(t)
	sub := NewChannelSubscriber("notifications", mgr)
	ctx := context.Background()

	recipient := uuid.New()
	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, recipient, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	// A corrupt message is dropped; the stream keeps working.
	sub.OnMessage(ctx, NewEventID(), []byte("garbage"))
	sub.OnMessage(ctx, NewEventID(), []byte(`{"channel":"notifications"}`))
	sub.OnMessage(ctx, NewEventID(), envelopeBytes(t, recipient))

	if len(conn.received()) != 2 {
		t.Errorf("got %d events, want marker plus the one valid delivery", len(conn.received()))
	}
}

func TestChannelSubscriber_NonUUIDMessageIDReplaced(t *testing.T) {
	mgr, _ := newTestManager(t)
	sub := NewChannelSubscriber("notifications", mgr)
	ctx := context.Background()

	recipient := uuid.New()
	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, recipient, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	sub.OnMessage(ctx, "not-a-uuid", envelopeBytes(t, recipient))

	got := conn.received()
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if _, err := uuid.Parse(got[1].ID); err != nil {
		t.Errorf("fallback event id %q is not a uuid", got[1].ID)
	}
}
