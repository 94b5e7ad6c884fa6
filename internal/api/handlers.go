// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chorusapp/chorus/internal/config"
	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/notification"
	"github.com/chorusapp/chorus/internal/push"
)

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	manager       *push.Manager
	notifications *notification.Service
	pushCfg       config.PushConfig
	serverCfg     config.ServerConfig
}

// NewHandler creates the handler set.
func NewHandler(manager *push.Manager, notifications *notification.Service, serverCfg config.ServerConfig, pushCfg config.PushConfig) *Handler {
	return &Handler{
		manager:       manager,
		notifications: notifications,
		pushCfg:       pushCfg,
		serverCfg:     serverCfg,
	}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin validates WebSocket connection origins.
// Browser WebSockets always send Origin; an empty header means a
// non-browser client, which is allowed since there is no CORS to bypass.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.serverCfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// Connect upgrades to a WebSocket push stream.
//
// Query parameters:
//   - recipient_id: the recipient to deliver for (required)
//   - last_event_id: resume cursor, the id of the last event received
//
// After the upgrade the client receives a system "connected" event, then
// any events missed since the cursor, then the live stream.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	recipientID, err := uuid.Parse(r.URL.Query().Get("recipient_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing recipient_id")
		return
	}
	lastEventID := r.URL.Query().Get("last_event_id")

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := newWSConn(ws, h.pushCfg.WriteTimeout)
	handle, err := h.manager.Connect(r.Context(), recipientID, conn, lastEventID)
	if err != nil {
		logging.Warn().Err(err).
			Str("recipient_id", recipientID.String()).
			Msg("Push connect failed")
		conn.Close()
		return
	}

	go conn.readPump(h.pushCfg.PongTimeout, func() {
		h.manager.Disconnect(handle)
	})
}

// Notify creates a notification and enqueues its delivery.
// This is the producer surface for sibling services inside the platform.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverID uuid.UUID       `json:"receiver_id"`
		Channel    string          `json:"channel"`
		Type       string          `json:"type"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.notifications.Notify(r.Context(), req.ReceiverID, req.Channel, req.Type, req.Payload)
	if err != nil {
		if errors.Is(err, notification.ErrInvalidNotification) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.Error().Err(err).Msg("Notify failed")
		writeError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

// ListNotifications returns a receiver's newest notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	receiverID, err := uuid.Parse(r.URL.Query().Get("receiver_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing receiver_id")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
	}

	notifs, err := h.notifications.Recent(r.Context(), receiverID, limit)
	if err != nil {
		logging.Error().Err(err).Msg("List notifications failed")
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifs == nil {
		notifs = []*notification.Notification{}
	}

	writeJSON(w, http.StatusOK, notifs)
}

// MarkNotificationRead stamps a notification as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		logging.Error().Err(err).Msg("Mark read failed")
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness and the local connection count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": len(h.manager.Registry().AllLocal()),
	})
}
