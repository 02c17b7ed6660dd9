// Package ingest connects the message bus to the device reconciler.
//
// The Ingestor subscribes to the device event hierarchy
// ({prefix}/devices/{device_id}/{method}) and applies each event to the
// reconciler. Event processing is lossy by design: a malformed, invalid,
// or unapplicable event is dropped, counted by reason, and logged, and
// ingestion continues. Nothing arriving on the bus can stop the service.
//
// Events published by this instance echo back through the broker; the
// sender field in the envelope identifies them and they are skipped.
//
// The Publisher is the outbound half: it announces applied mutations as
// full-state envelopes so device firmware and peer instances converge on
// the stored state.
package ingest
