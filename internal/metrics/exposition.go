package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Metric name prefix for the textual exposition.
const namePrefix = "smarthome_"

// WritePrometheus renders every counter in the Prometheus text exposition
// format. Series are sorted for deterministic output and testability.
func (a *Aggregator) WritePrometheus(w io.Writer) error {
	snap := a.Snapshot()
	var b strings.Builder

	writeHeader(&b, "transitions_total", "counter",
		"Reconciliation attempts by device type, action, and outcome.")
	for _, t := range snap.Transitions {
		writeSeries(&b, "transitions_total", labels{
			{"device_type", t.DeviceType},
			{"action", t.Action},
			{"outcome", t.Outcome},
		}, fmt.Sprintf("%d", t.Count))
	}

	writeHeader(&b, "events_dropped_total", "counter",
		"Events discarded before reconciliation, by reason.")
	for _, reason := range sortedKeys(snap.DroppedEvents) {
		writeSeries(&b, "events_dropped_total", labels{
			{"reason", reason},
		}, fmt.Sprintf("%d", snap.DroppedEvents[reason]))
	}

	writeHeader(&b, "device_on_events_total", "counter",
		"Transitions into an active status, by device type.")
	for _, deviceType := range sortedKeys(snap.DeviceOnEvents) {
		writeSeries(&b, "device_on_events_total", labels{
			{"device_type", deviceType},
		}, fmt.Sprintf("%d", snap.DeviceOnEvents[deviceType]))
	}

	writeHeader(&b, "device_usage_seconds_total", "counter",
		"Accumulated time spent in an active status, by device type.")
	for _, deviceType := range sortedKeys(snap.DeviceUsageSeconds) {
		writeSeries(&b, "device_usage_seconds_total", labels{
			{"device_type", deviceType},
		}, formatFloat(snap.DeviceUsageSeconds[deviceType]))
	}

	writeHeader(&b, "http_requests_total", "counter",
		"Served HTTP requests by route, method, and status code.")
	for _, r := range snap.Requests {
		writeSeries(&b, "http_requests_total", labels{
			{"route", r.Route},
			{"method", r.Method},
			{"status", fmt.Sprintf("%d", r.Status)},
		}, fmt.Sprintf("%d", r.Count))
	}

	writeHeader(&b, "http_request_duration_seconds", "histogram",
		"HTTP request latency distribution per route.")
	for _, l := range snap.Latency {
		for i, bound := range l.Buckets {
			writeSeries(&b, "http_request_duration_seconds_bucket", labels{
				{"route", l.Route},
				{"le", formatFloat(bound)},
			}, fmt.Sprintf("%d", l.BucketCounts[i]))
		}
		writeSeries(&b, "http_request_duration_seconds_bucket", labels{
			{"route", l.Route},
			{"le", "+Inf"},
		}, fmt.Sprintf("%d", l.Count))
		writeSeries(&b, "http_request_duration_seconds_sum", labels{
			{"route", l.Route},
		}, formatFloat(l.SumSeconds))
		writeSeries(&b, "http_request_duration_seconds_count", labels{
			{"route", l.Route},
		}, fmt.Sprintf("%d", l.Count))
	}

	writeHeader(&b, "uptime_seconds", "gauge",
		"Seconds since the process started.")
	writeSeries(&b, "uptime_seconds", nil, formatFloat(snap.UptimeSeconds))

	_, err := io.WriteString(w, b.String())
	return err
}

// labels is an ordered label list. Order is fixed by the caller so output
// stays deterministic.
type labels []struct {
	key   string
	value string
}

func writeHeader(b *strings.Builder, name, kind, help string) {
	b.WriteString("# HELP ")
	b.WriteString(namePrefix)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(help)
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(namePrefix)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSeries(b *strings.Builder, name string, ls labels, value string) {
	b.WriteString(namePrefix)
	b.WriteString(name)
	if len(ls) > 0 {
		b.WriteByte('{')
		for i, l := range ls {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(l.key)
			b.WriteString(`="`)
			b.WriteString(escapeLabelValue(l.value))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

// escapeLabelValue escapes backslashes, quotes, and newlines per the
// exposition format.
func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}

// sortedKeys returns map keys in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
