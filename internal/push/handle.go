// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conn abstracts the client transport. The HTTP layer adapts its WebSocket
// connection to this interface; tests substitute in-memory fakes.
//
// Implementations must tolerate concurrent Close with an in-flight write.
type Conn interface {
	// WriteEvent sends one event frame to the client.
	WriteEvent(ev Event) error

	// WritePing sends a liveness probe.
	WritePing() error

	// Close tears down the transport. Safe to call more than once.
	Close() error
}

// Handle is one recipient's live connection on this instance.
// Writes are serialized; the underlying transports do not allow
// concurrent writers.
type Handle struct {
	recipientID uuid.UUID
	conn        Conn
	openedAt    time.Time

	mu     sync.Mutex
	closed bool
}

func newHandle(recipientID uuid.UUID, conn Conn) *Handle {
	return &Handle{
		recipientID: recipientID,
		conn:        conn,
		openedAt:    time.Now(),
	}
}

// RecipientID returns the recipient this handle delivers to.
func (h *Handle) RecipientID() uuid.UUID {
	return h.recipientID
}

// OpenedAt returns when the connection was registered.
func (h *Handle) OpenedAt() time.Time {
	return h.openedAt
}

// Send writes one event to the client.
func (h *Handle) Send(ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHandleClosed
	}
	return h.conn.WriteEvent(ev)
}

// Ping writes a liveness probe to the client.
func (h *Handle) Ping() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHandleClosed
	}
	return h.conn.WritePing()
}

// Close tears down the transport. Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.conn.Close()
}
