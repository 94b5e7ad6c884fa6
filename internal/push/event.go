// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package push

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Event is one unit of delivery to a client.
//
// The id is a UUIDv7 string: canonical string order equals time order, so
// ids serve both as dedup keys and as resume cursors. Ids are assigned by
// the producer (the outbox record id travels with the broadcast message),
// which keeps them identical across instances.
type Event struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// NewEventID returns a fresh time-ordered event id.
func NewEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// EventTime decodes the millisecond timestamp embedded in a UUIDv7 event
// id. Used by the cold resume path to translate a cursor into a store
// query boundary.
func EventTime(id string) (time.Time, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event id: %w", err)
	}
	if u.Version() != 7 {
		return time.Time{}, fmt.Errorf("event id %s is not time-ordered (version %d)", id, u.Version())
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}
