package device

import "time"

// Source identifies which surface a mutation arrived on.
type Source string

// Source constants.
const (
	// SourceAPI marks mutations from the HTTP surface.
	SourceAPI Source = "api"

	// SourceMessaging marks mutations observed on the message bus.
	SourceMessaging Source = "messaging"
)

// Event is a single device mutation observation. Both surfaces funnel
// into the reconciler through the same structure, so validation and
// ordering rules apply identically regardless of origin.
type Event struct {
	// DeviceID identifies the device the observation is about.
	DeviceID string

	// Source is the surface the event arrived on.
	Source Source

	// Descriptor fields, present when the sender includes them.
	// Required for implicit registration of unknown devices.
	Type Type
	Room string
	Name string

	// Status carries a status change. Nil leaves the stored status.
	Status *Status

	// Payload carries parameter changes. May be partial for updates;
	// missing keys keep their stored values.
	Payload Parameters

	// SequenceHint is the sender's belief of the device's version.
	// Zero means absent. A hint below the stored version marks the
	// event stale and it is discarded without side effects.
	SequenceHint int64

	// ObservedAt is when the event was received.
	ObservedAt time.Time
}
