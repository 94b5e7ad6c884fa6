// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeSource is an in-memory EventSource.
type fakeSource struct {
	mu        sync.Mutex
	events    map[uuid.UUID][]Event
	calls     int
	lastAfter time.Time
}

func (s *fakeSource) EventsAfter(ctx context.Context, recipientID uuid.UUID, after time.Time) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastAfter = after

	var out []Event
	for _, ev := range s.events[recipientID] {
		if !ev.EmittedAt.Before(after) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeSource) add(recipientID uuid.UUID, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		s.events = make(map[uuid.UUID][]Event)
	}
	s.events[recipientID] = append(s.events[recipientID], ev)
}

func newTestManager(t *testing.T) (*Manager, *fakeSource) {
	t.Helper()
	source := &fakeSource{}
	cache := NewBadgerReplayCache(newTestDB(t), 30*time.Minute, 100)
	return NewManager(NewRegistry(), cache, source), source
}

func timedEvent(payload string) Event {
	ev := testEvent(payload)
	ev.EmittedAt = time.Now().UTC()
	return ev
}

func TestManager_ConnectSendsMarker(t *testing.T) {
	mgr, _ := newTestManager(t)
	conn := &fakeConn{}

	h, err := mgr.Connect(context.Background(), uuid.New(), conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	got := conn.received()
	if len(got) != 1 {
		t.Fatalf("got %d events on connect, want marker only", len(got))
	}
	if got[0].Channel != "system" {
		t.Errorf("marker channel = %q, want system", got[0].Channel)
	}
}

func TestManager_ConnectFailsOnDeadConn(t *testing.T) {
	mgr, _ := newTestManager(t)
	conn := &fakeConn{failWrites: true}

	if _, err := mgr.Connect(context.Background(), uuid.New(), conn, ""); err == nil {
		t.Fatal("Connect over a dead connection should fail")
	}
	if !conn.isClosed() {
		t.Error("dead connection should be closed")
	}
}

func TestManager_SendToUser_LocalDelivery(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	recipient := uuid.New()
	conn := &fakeConn{}

	h, err := mgr.Connect(ctx, recipient, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	ev := timedEvent(`{"n":1}`)
	if err := mgr.SendToUser(ctx, recipient, ev); err != nil {
		t.Fatalf("SendToUser: %v", err)
	}

	got := conn.received()
	if len(got) != 2 || got[1].ID != ev.ID {
		t.Errorf("connection received %d events, want marker plus the event", len(got))
	}
}

func TestManager_SendToUser_RemoteRecipientCachedOnly(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	recipient := uuid.New()

	// Recipient connected elsewhere: the event is cached here so this
	// instance can serve a later resume, but nothing is delivered.
	ev := timedEvent(`{"n":1}`)
	if err := mgr.SendToUser(ctx, recipient, ev); err != nil {
		t.Fatalf("SendToUser: %v", err)
	}

	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, recipient, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	if len(conn.received()) != 1 {
		t.Error("connect without cursor should not replay cached events")
	}
}

func TestManager_ResumeWarmPath(t *testing.T) {
	mgr, source := newTestManager(t)
	ctx := context.Background()
	recipient := uuid.New()

	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, recipient, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var ids []string
	for i := 0; i < 2; i++ {
		ev := timedEvent(fmt.Sprintf(`{"n":%d}`, i))
		ids = append(ids, ev.ID)
		if err := mgr.SendToUser(ctx, recipient, ev); err != nil {
			t.Fatalf("SendToUser: %v", err)
		}
	}

	mgr.Disconnect(h)

	// Three events arrive while the client is offline.
	for i := 2; i < 5; i++ {
		ev := timedEvent(fmt.Sprintf(`{"n":%d}`, i))
		ids = append(ids, ev.ID)
		if err := mgr.SendToUser(ctx, recipient, ev); err != nil {
			t.Fatalf("SendToUser: %v", err)
		}
	}

	conn2 := &fakeConn{}
	h2, err := mgr.Connect(ctx, recipient, conn2, ids[1])
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer mgr.Disconnect(h2)

	got := conn2.received()
	if len(got) != 4 {
		t.Fatalf("got %d events on resume, want marker plus 3 missed", len(got))
	}
	for i, want := range ids[2:] {
		if got[i+1].ID != want {
			t.Errorf("replayed[%d] = %s, want %s", i, got[i+1].ID, want)
		}
	}
	if source.calls != 0 {
		t.Errorf("warm resume should not hit the store, got %d calls", source.calls)
	}
}

func TestManager_ResumeColdPath(t *testing.T) {
	mgr, source := newTestManager(t)
	ctx := context.Background()
	recipient := uuid.New()

	cursor := timedEvent(`{"n":0}`)
	missed1 := timedEvent(`{"n":1}`)
	missed2 := timedEvent(`{"n":2}`)
	for _, ev := range []Event{cursor, missed1, missed2} {
		source.add(recipient, ev)
	}

	// Nothing cached: resume must fall back to the durable store.
	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, recipient, conn, cursor.ID)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer mgr.Disconnect(h)

	if source.calls != 1 {
		t.Fatalf("store queried %d times, want 1", source.calls)
	}

	cursorTime, err := EventTime(cursor.ID)
	if err != nil {
		t.Fatalf("EventTime: %v", err)
	}
	if source.lastAfter.After(cursorTime) {
		t.Errorf("store queried after %s, cursor decodes to %s", source.lastAfter, cursorTime)
	}

	got := conn.received()
	if len(got) != 3 {
		t.Fatalf("got %d events, want marker plus 2 missed", len(got))
	}
	if got[1].ID != missed1.ID || got[2].ID != missed2.ID {
		t.Error("cold resume replayed wrong events or order")
	}

	// The cursor event itself must not be re-delivered.
	for _, ev := range got {
		if ev.ID == cursor.ID {
			t.Error("cursor event re-delivered on resume")
		}
	}
}

func TestManager_ResumeBadCursorKeepsConnection(t *testing.T) {
	mgr, _ := newTestManager(t)
	conn := &fakeConn{}

	h, err := mgr.Connect(context.Background(), uuid.New(), conn, "not-a-cursor")
	if err != nil {
		t.Fatalf("Connect with bad cursor should still succeed: %v", err)
	}
	defer mgr.Disconnect(h)

	if len(conn.received()) != 1 {
		t.Error("bad cursor should yield the marker and nothing else")
	}
}

func TestManager_HeartbeatIndependentOfStalledPeer(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	release := make(chan struct{})
	stuckConn := &fakeConn{blockPings: release}
	healthyConn := &fakeConn{}

	if _, err := mgr.Connect(ctx, uuid.New(), stuckConn, ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	healthy := uuid.New()
	if _, err := mgr.Connect(ctx, healthy, healthyConn, ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		mgr.HeartbeatAll()
		close(done)
	}()

	// The healthy connection must be pinged while the other transport
	// write is stalled.
	deadline := time.Now().Add(2 * time.Second)
	for healthyConn.pingCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("healthy connection not pinged while a peer ping was stalled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HeartbeatAll did not return after the stalled ping unblocked")
	}

	if stuckConn.pingCount() != 1 {
		t.Errorf("stalled connection pinged %d times, want 1", stuckConn.pingCount())
	}
	if !mgr.Registry().HasLocal(healthy) {
		t.Error("healthy connection evicted by heartbeat")
	}
}

func TestManager_ResumeWithMarkerCursorStaysWarm(t *testing.T) {
	mgr, source := newTestManager(t)
	ctx := context.Background()
	recipient := uuid.New()

	// Client connects, sees only the marker, drops.
	conn := &fakeConn{}
	h, err := mgr.Connect(ctx, recipient, conn, "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	markerID := conn.received()[0].ID
	mgr.Disconnect(h)

	var missed []string
	for i := 0; i < 2; i++ {
		ev := timedEvent(fmt.Sprintf(`{"n":%d}`, i))
		missed = append(missed, ev.ID)
		if err := mgr.SendToUser(ctx, recipient, ev); err != nil {
			t.Fatalf("SendToUser: %v", err)
		}
	}

	conn2 := &fakeConn{}
	h2, err := mgr.Connect(ctx, recipient, conn2, markerID)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer mgr.Disconnect(h2)

	if source.calls != 0 {
		t.Errorf("marker cursor resume hit the store %d times, want warm tier only", source.calls)
	}

	got := conn2.received()
	if len(got) != 3 {
		t.Fatalf("got %d events on resume, want marker plus 2 missed", len(got))
	}
	for i, want := range missed {
		if got[i+1].ID != want {
			t.Errorf("replayed[%d] = %s, want %s", i, got[i+1].ID, want)
		}
	}
	// Cached markers anchor cursors but are never replayed.
	for _, ev := range got[1:] {
		if ev.Channel == "system" {
			t.Error("stale marker replayed on resume")
		}
	}
}

func TestManager_HeartbeatEvictsUnresponsive(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	healthy := uuid.New()
	dead := uuid.New()
	healthyConn := &fakeConn{}
	deadConn := &fakeConn{failPings: true}

	if _, err := mgr.Connect(ctx, healthy, healthyConn, ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := mgr.Connect(ctx, dead, deadConn, ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	mgr.HeartbeatAll()

	if !mgr.Registry().HasLocal(healthy) {
		t.Error("healthy connection evicted by heartbeat")
	}
	if mgr.Registry().HasLocal(dead) {
		t.Error("unresponsive connection survived heartbeat")
	}
	if !deadConn.isClosed() {
		t.Error("unresponsive connection should be closed")
	}
}
