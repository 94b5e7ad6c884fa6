// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package eventbus

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Envelope is the wire format carried on broadcast push subjects.
//
// The body must contain a recipient identifier: instances filter on it to
// decide whether the message is deliverable locally. The payload stays
// opaque - schema ownership belongs to the producing domain.
type Envelope struct {
	RecipientID uuid.UUID       `json:"recipient_id"`
	Channel     string          `json:"channel"`
	Payload     json.RawMessage `json:"payload"`
	EmittedAt   time.Time       `json:"emitted_at"`
}

// Validate checks the envelope's required fields.
func (e *Envelope) Validate() error {
	if e.RecipientID == uuid.Nil {
		return fmt.Errorf("envelope missing recipient_id")
	}
	if e.Channel == "" {
		return fmt.Errorf("envelope missing channel")
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope missing payload")
	}
	return nil
}

// Serializer handles envelope encoding/decoding for broadcast messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an envelope to JSON bytes.
func (s *Serializer) Marshal(env *Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("validate envelope: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON bytes to an envelope.
// The envelope is validated after decoding; a structurally valid JSON
// document without a recipient id is still rejected.
func (s *Serializer) Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}

	return &env, nil
}
