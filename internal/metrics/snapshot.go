package metrics

import (
	"sort"
	"time"
)

// TransitionCount is one transition counter series in a snapshot.
type TransitionCount struct {
	DeviceType string `json:"device_type"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	Count      int64  `json:"count"`
}

// RequestCount is one request counter series in a snapshot.
type RequestCount struct {
	Route  string `json:"route"`
	Method string `json:"method"`
	Status int    `json:"status"`
	Count  int64  `json:"count"`
}

// RouteLatency summarizes the latency distribution for one route.
type RouteLatency struct {
	Route        string    `json:"route"`
	Count        uint64    `json:"count"`
	SumSeconds   float64   `json:"sum_seconds"`
	Buckets      []float64 `json:"buckets"`
	BucketCounts []uint64  `json:"bucket_counts"`
}

// Snapshot is a point-in-time copy of every counter the aggregator holds.
// Counters are cumulative since process start; they only ever grow.
type Snapshot struct {
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds float64 `json:"uptime_seconds"`

	Transitions   []TransitionCount `json:"transitions"`
	DroppedEvents map[string]int64  `json:"dropped_events"`

	DeviceOnEvents     map[string]int64   `json:"device_on_events"`
	DeviceUsageSeconds map[string]float64 `json:"device_usage_seconds"`

	Requests []RequestCount `json:"requests"`
	Latency  []RouteLatency `json:"latency"`
}

// Snapshot returns a consistent copy of all counters. Usage seconds include
// time accrued so far by devices that are still on; their intervals remain
// open.
func (a *Aggregator) Snapshot() Snapshot {
	now := time.Now().UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Timestamp:          now.Format(time.RFC3339),
		UptimeSeconds:      now.Sub(a.startTime).Seconds(),
		DroppedEvents:      make(map[string]int64, len(a.drops)+1),
		DeviceOnEvents:     make(map[string]int64, len(a.onEvents)),
		DeviceUsageSeconds: make(map[string]float64, len(a.usage)),
	}

	for key, count := range a.transitions {
		snap.Transitions = append(snap.Transitions, TransitionCount{
			DeviceType: string(key.DeviceType),
			Action:     string(key.Action),
			Outcome:    string(key.Outcome),
			Count:      count,
		})
	}
	sort.Slice(snap.Transitions, func(i, j int) bool {
		a, b := snap.Transitions[i], snap.Transitions[j]
		if a.DeviceType != b.DeviceType {
			return a.DeviceType < b.DeviceType
		}
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		return a.Outcome < b.Outcome
	})

	for reason, count := range a.drops {
		snap.DroppedEvents[reason] = count
	}
	if n := a.queueFull.Load(); n > 0 {
		snap.DroppedEvents["queue_full"] += n
	}

	for deviceType, count := range a.onEvents {
		snap.DeviceOnEvents[string(deviceType)] = count
	}

	for deviceType, seconds := range a.usage {
		snap.DeviceUsageSeconds[string(deviceType)] = seconds
	}
	for _, iv := range a.open {
		if accrued := now.Sub(iv.since).Seconds(); accrued > 0 {
			snap.DeviceUsageSeconds[string(iv.deviceType)] += accrued
		}
	}

	for key, count := range a.requests {
		snap.Requests = append(snap.Requests, RequestCount{
			Route:  key.Route,
			Method: key.Method,
			Status: key.Code,
			Count:  count,
		})
	}
	sort.Slice(snap.Requests, func(i, j int) bool {
		a, b := snap.Requests[i], snap.Requests[j]
		if a.Route != b.Route {
			return a.Route < b.Route
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		return a.Status < b.Status
	})

	for route, h := range a.latency {
		counts := make([]uint64, len(h.counts))
		copy(counts, h.counts)
		snap.Latency = append(snap.Latency, RouteLatency{
			Route:        route,
			Count:        h.count,
			SumSeconds:   h.sum,
			Buckets:      defaultLatencyBuckets,
			BucketCounts: counts,
		})
	}
	sort.Slice(snap.Latency, func(i, j int) bool {
		return snap.Latency[i].Route < snap.Latency[j].Route
	})

	return snap
}
