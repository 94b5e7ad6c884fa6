// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrInvalidNotification wraps validation failures.
var ErrInvalidNotification = errors.New("invalid notification")

// MaxTypeLen bounds the notification type identifier.
const MaxTypeLen = 100

// Notification is one durable message for one receiver.
type Notification struct {
	ID         uuid.UUID       `json:"id"`
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Channel    string          `json:"channel"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	ReadAt     *time.Time      `json:"read_at,omitempty"`
}

// New builds a notification with a time-ordered id.
func New(receiverID uuid.UUID, channel, notifType string, payload []byte) (*Notification, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	n := &Notification{
		ID:         id,
		ReceiverID: receiverID,
		Channel:    channel,
		Type:       notifType,
		Payload:    json.RawMessage(payload),
		CreatedAt:  time.Now().UTC(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks required fields.
func (n *Notification) Validate() error {
	switch {
	case n.ReceiverID == uuid.Nil:
		return fmt.Errorf("%w: receiver id is required", ErrInvalidNotification)
	case n.Channel == "":
		return fmt.Errorf("%w: channel is required", ErrInvalidNotification)
	case n.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidNotification)
	case len(n.Type) > MaxTypeLen:
		return fmt.Errorf("%w: type exceeds %d characters", ErrInvalidNotification, MaxTypeLen)
	case len(n.Payload) == 0:
		return fmt.Errorf("%w: payload is required", ErrInvalidNotification)
	}
	return nil
}

// MarkRead stamps the notification as read.
func (n *Notification) MarkRead(now time.Time) {
	t := now.UTC()
	n.ReadAt = &t
}
