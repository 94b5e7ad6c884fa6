// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/push"
)

const (
	defaultWriteWait = 10 * time.Second
	defaultPongWait  = 60 * time.Second
	maxMessageSize   = 4096
)

// wsConn adapts a gorilla WebSocket connection to push.Conn.
//
// gorilla permits one concurrent writer; the push layer already
// serializes writes per handle, and the mutex here additionally covers
// the close frame racing a write.
type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

func newWSConn(conn *websocket.Conn, writeWait time.Duration) *wsConn {
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &wsConn{conn: conn, writeWait: writeWait}
}

// WriteEvent sends one event as a JSON text frame.
func (c *wsConn) WriteEvent(ev push.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(ev)
}

// WritePing sends a WebSocket ping control frame.
func (c *wsConn) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Close sends a close frame best-effort and tears down the connection.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	deadline := time.Now().Add(c.writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

// readPump consumes inbound frames until the connection dies.
// Clients send nothing meaningful; the pump exists to process pong
// frames, enforce the read deadline and detect disconnects. onClose runs
// exactly once when the pump exits.
func (c *wsConn) readPump(pongWait time.Duration, onClose func()) {
	defer onClose()

	if pongWait <= 0 {
		pongWait = defaultPongWait
	}

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Msg("Unexpected websocket close")
			}
			return
		}
	}
}
