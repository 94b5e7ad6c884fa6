// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/chorusapp/chorus/internal/logging"
	"github.com/chorusapp/chorus/internal/metrics"
)

var errHandleClosed = errors.New("push connection closed")

// Registry tracks which recipients are connected to this instance.
// One live connection per recipient: opening a second connection for the
// same recipient evicts and closes the first.
type Registry struct {
	handles sync.Map // uuid.UUID -> *Handle
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Open registers a connection for the recipient, closing any previous one.
func (r *Registry) Open(recipientID uuid.UUID, conn Conn) *Handle {
	h := newHandle(recipientID, conn)

	if prev, loaded := r.handles.Swap(recipientID, h); loaded {
		old := prev.(*Handle)
		old.Close()
		metrics.PushActiveConnections.Dec()
		logging.Debug().
			Str("recipient_id", recipientID.String()).
			Msg("Evicted previous push connection")
	}

	metrics.PushActiveConnections.Inc()
	return h
}

// Close removes the handle from the registry and closes it. A handle that
// was already replaced by a newer connection is closed without touching
// the newer one.
func (r *Registry) Close(h *Handle) {
	if r.handles.CompareAndDelete(h.recipientID, h) {
		metrics.PushActiveConnections.Dec()
	}
	h.Close()
}

// HasLocal reports whether the recipient has a live connection here.
func (r *Registry) HasLocal(recipientID uuid.UUID) bool {
	_, ok := r.handles.Load(recipientID)
	return ok
}

// Get returns the recipient's handle if connected locally.
func (r *Registry) Get(recipientID uuid.UUID) (*Handle, bool) {
	v, ok := r.handles.Load(recipientID)
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}

// AllLocal snapshots the handles currently registered.
func (r *Registry) AllLocal() []*Handle {
	var out []*Handle
	r.handles.Range(func(_, v any) bool {
		out = append(out, v.(*Handle))
		return true
	})
	return out
}

// Send delivers one event to a locally connected recipient. A write
// failure evicts the connection: the client is gone or wedged, and it will
// recover the event through resume on reconnect. Returns false when the
// recipient is not connected here or the write failed.
func (r *Registry) Send(recipientID uuid.UUID, ev Event) bool {
	h, ok := r.Get(recipientID)
	if !ok {
		return false
	}

	if err := h.Send(ev); err != nil {
		metrics.PushEventsFailed.Inc()
		logging.Debug().Err(err).
			Str("recipient_id", recipientID.String()).
			Str("event_id", ev.ID).
			Msg("Push write failed, evicting connection")
		r.Close(h)
		return false
	}

	metrics.PushEventsSent.Inc()
	return true
}
