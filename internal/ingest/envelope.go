package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/nadavnv/smart-home-core/internal/device"
)

// Envelope is the wire format for device events on the message bus.
//
// Inbound events may be partial: firmware typically sends only the fields
// that changed plus its sequence belief. Outbound events published by this
// service always carry the full device state.
type Envelope struct {
	DeviceID string `json:"device_id,omitempty"`

	// Sender identifies the publishing service instance. Events from our
	// own instance are filtered out to avoid reconciliation loops.
	Sender string `json:"sender,omitempty"`

	// MessageID uniquely identifies one published event.
	MessageID string `json:"message_id,omitempty"`

	// Sequence is the sender's belief of the device's version.
	// Zero means absent.
	Sequence int64 `json:"sequence,omitempty"`

	// Descriptor fields, required only for implicit registration.
	Type device.Type `json:"type,omitempty"`
	Room string      `json:"room,omitempty"`
	Name string      `json:"name,omitempty"`

	Status     *device.Status    `json:"status,omitempty"`
	Parameters device.Parameters `json:"parameters,omitempty"`

	// Version is the stored version after the mutation. Outbound only.
	Version int64 `json:"version,omitempty"`
}

// decodeEnvelope parses an event payload. Unknown fields are tolerated so
// newer firmware can carry extras without being dropped.
func decodeEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding event payload: %w", err)
	}
	return &env, nil
}
