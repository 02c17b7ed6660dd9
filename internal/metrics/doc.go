// Package metrics provides the in-process usage and reliability counters
// for the smart-home core.
//
// The Aggregator is the single owner of all counters. Producers record
// samples fire-and-forget through a bounded queue; a consumer goroutine
// folds them into the counters, so recording never blocks the serving
// path. A full queue drops the sample and counts the drop.
//
// Three families of data are tracked:
//
//   - Reconciliation transitions (create/update/delete by outcome),
//     fed by the device reconciler through the TransitionSink interface.
//   - Device usage: on-event counts and accumulated active seconds per
//     device type, derived from status samples.
//   - HTTP serving: per-route request counters and latency histograms.
//
// Counters are cumulative since process start and only ever grow. Two
// read paths exist: Snapshot returns a JSON-ready copy for the analytics
// endpoint, and WritePrometheus renders the text exposition format for
// scraping.
//
// An optional Mirror duplicates applied samples into InfluxDB for
// retention beyond process lifetime. The mirror is best-effort and never
// affects the in-process counters.
package metrics
