package domain

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire shape of every message on the event topics:
// {"event": "<type>", "payload": {...}}. The outbox worker adds event_id.
type Envelope struct {
	Event   string          `json:"event"`
	EventID int64           `json:"event_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("event payload marshal error: %w", err)
	}

	return json.Marshal(Envelope{Event: event, Payload: raw})
}

func (e *Envelope) Decode(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("error unmarshalling %s payload: %w", e.Event, err)
	}

	return nil
}
