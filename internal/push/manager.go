// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/metrics"
)

// markerChannel carries synthetic connection-lifecycle events. Marker
// events are delivered live and cached as resume anchors, never replayed.
const markerChannel = "system"

// EventSource is the cold tier of resume: durable per-recipient events
// queryable by time. The notification store implements it.
type EventSource interface {
	EventsAfter(ctx context.Context, recipientID uuid.UUID, after time.Time) ([]Event, error)
}

// Manager coordinates delivery, caching and resume for push connections.
//
// SendToUser always records the event in the replay cache, then delivers
// only if the recipient is connected to this instance. Since every
// instance runs the same logic on every broadcast envelope, exactly the
// instance holding the connection delivers, and every instance can serve a
// later resume from its cache.
type Manager struct {
	registry *Registry
	cache    ReplayCache
	source   EventSource
}

// NewManager wires the registry, warm cache and cold source together.
func NewManager(registry *Registry, cache ReplayCache, source EventSource) *Manager {
	return &Manager{
		registry: registry,
		cache:    cache,
		source:   source,
	}
}

// Registry exposes the connection registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Connect registers a new connection, confirms it with a marker event and
// replays missed events when the client presented a cursor.
func (m *Manager) Connect(ctx context.Context, recipientID uuid.UUID, conn Conn, lastEventID string) (*Handle, error) {
	h := m.registry.Open(recipientID, conn)

	marker := Event{
		ID:        NewEventID(),
		Channel:   markerChannel,
		Payload:   json.RawMessage(`{"type":"connected"}`),
		EmittedAt: time.Now().UTC(),
	}
	// The marker goes into the replay cache as well: a client that saw
	// only the marker before dropping presents its id as cursor, and the
	// warm tier must recognize it. Markers are cursor anchors only and
	// are never replayed.
	if err := m.cache.Record(ctx, recipientID, marker); err != nil {
		logging.Warn().Err(err).
			Str("recipient_id", recipientID.String()).
			Msg("Replay cache record failed for connect marker")
	}
	if err := h.Send(marker); err != nil {
		m.registry.Close(h)
		return nil, fmt.Errorf("send connect marker: %w", err)
	}

	if lastEventID != "" {
		if err := m.Resume(ctx, recipientID, lastEventID); err != nil {
			// A bad cursor costs the client its backlog, not the connection.
			logging.Warn().Err(err).
				Str("recipient_id", recipientID.String()).
				Str("cursor", lastEventID).
				Msg("Resume failed, continuing with live stream only")
		}
	}

	logging.Info().
		Str("recipient_id", recipientID.String()).
		Bool("resumed", lastEventID != "").
		Msg("Push connection established")
	return h, nil
}

// Disconnect deregisters and closes the handle.
func (m *Manager) Disconnect(h *Handle) {
	m.registry.Close(h)
}

// SendToUser caches the event and delivers it if the recipient is local.
// Caching happens unconditionally so any instance can serve this event on
// resume, wherever the recipient reconnects.
func (m *Manager) SendToUser(ctx context.Context, recipientID uuid.UUID, ev Event) error {
	if err := m.cache.Record(ctx, recipientID, ev); err != nil {
		logging.Warn().Err(err).
			Str("recipient_id", recipientID.String()).
			Str("event_id", ev.ID).
			Msg("Replay cache record failed")
	}

	if !m.registry.HasLocal(recipientID) {
		return nil
	}
	m.registry.Send(recipientID, ev)
	return nil
}

// Resume replays events newer than the cursor to the recipient.
// The warm replay cache is tried first; when it cannot prove coverage of
// the gap, the durable store is queried using the timestamp embedded in
// the cursor.
func (m *Manager) Resume(ctx context.Context, recipientID uuid.UUID, cursor string) error {
	events, covered, err := m.cache.After(ctx, recipientID, cursor)
	if err != nil {
		logging.Warn().Err(err).
			Str("recipient_id", recipientID.String()).
			Msg("Replay cache lookup failed, falling back to store")
	}

	if err == nil && covered {
		metrics.ReplayCacheHits.Inc()
		m.replay(recipientID, events, "cache")
		return nil
	}

	metrics.ReplayCacheMisses.Inc()

	since, err := EventTime(cursor)
	if err != nil {
		return fmt.Errorf("resume cursor: %w", err)
	}

	stored, err := m.source.EventsAfter(ctx, recipientID, since)
	if err != nil {
		return fmt.Errorf("load events from store: %w", err)
	}

	// The time boundary is millisecond-coarse; drop the cursor event and
	// anything older that shares its millisecond.
	replayable := stored[:0]
	for _, ev := range stored {
		if ev.ID > cursor {
			replayable = append(replayable, ev)
		}
	}
	m.replay(recipientID, replayable, "store")
	return nil
}

func (m *Manager) replay(recipientID uuid.UUID, events []Event, source string) {
	sent := 0
	for _, ev := range events {
		if ev.Channel == markerChannel {
			continue
		}
		if !m.registry.Send(recipientID, ev) {
			return
		}
		metrics.PushEventsResent.WithLabelValues(source).Inc()
		sent++
	}
	if sent > 0 {
		logging.Debug().
			Str("recipient_id", recipientID.String()).
			Int("events", sent).
			Str("source", source).
			Msg("Replayed missed events")
	}
}

// HeartbeatAll pings every local connection and evicts the unresponsive.
// Driven by the heartbeat service on a fixed cadence. Each ping runs in
// its own goroutine: a stalled transport write must not delay liveness
// checks on the other connections.
func (m *Manager) HeartbeatAll() {
	var wg sync.WaitGroup
	for _, h := range m.registry.AllLocal() {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			if err := h.Ping(); err != nil {
				metrics.PushHeartbeatFailures.Inc()
				logging.Debug().Err(err).
					Str("recipient_id", h.RecipientID().String()).
					Msg("Heartbeat failed, evicting connection")
				m.registry.Close(h)
			}
		}(h)
	}
	wg.Wait()
}
