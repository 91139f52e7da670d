package amqp

import (
	"encoding/json"
	"time"

	"finchat/internal/core"
)

// XPEventMessage is the wire form of an XP event. EventID carries the
// idempotency key, so redelivered messages collapse in the engine.
type XPEventMessage struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	XPDelta    int64     `json:"xp_delta"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewXPEventMessage builds the wire form of a domain event.
func NewXPEventMessage(ev core.XPEvent) *XPEventMessage {
	return &XPEventMessage{
		EventID:    ev.EventID,
		UserID:     ev.UserID,
		Action:     ev.Action,
		XPDelta:    ev.XPDelta,
		OccurredAt: ev.OccurredAt,
	}
}

// Event converts the message back to the domain type.
func (m *XPEventMessage) Event() core.XPEvent {
	return core.XPEvent{
		EventID:    m.EventID,
		UserID:     m.UserID,
		Action:     m.Action,
		XPDelta:    m.XPDelta,
		OccurredAt: m.OccurredAt,
	}
}

// ToJSON converts the message to JSON bytes.
func (m *XPEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// XPEventMessageFromJSON creates a message from JSON bytes.
func XPEventMessageFromJSON(data []byte) (*XPEventMessage, error) {
	var msg XPEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
