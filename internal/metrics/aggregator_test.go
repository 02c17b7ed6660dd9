package metrics

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nadavnv/smart-home-core/internal/device"
)

// ===== Test Helpers =====

// flush runs the consumer loop until every queued sample is applied.
// Cancelling before Start makes the loop drain the queue and exit, so
// the counters are stable once Done fires.
func flush(t *testing.T, a *Aggregator) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Start(ctx)

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("aggregator did not drain in time")
	}
}

func findTransition(snap Snapshot, deviceType, action, outcome string) int64 {
	for _, tc := range snap.Transitions {
		if tc.DeviceType == deviceType && tc.Action == action && tc.Outcome == outcome {
			return tc.Count
		}
	}
	return 0
}

func findRequest(snap Snapshot, route, method string, status int) int64 {
	for _, rc := range snap.Requests {
		if rc.Route == route && rc.Method == method && rc.Status == status {
			return rc.Count
		}
	}
	return 0
}

// ===== Transitions =====

func TestAggregatorTransitions(t *testing.T) {
	a := NewAggregator(0)

	a.RecordTransition(device.TypeLight, device.ActionCreate, device.OutcomeApplied)
	a.RecordTransition(device.TypeLight, device.ActionUpdate, device.OutcomeApplied)
	a.RecordTransition(device.TypeLight, device.ActionUpdate, device.OutcomeApplied)
	a.RecordTransition(device.TypeLight, device.ActionUpdate, device.OutcomeRejectedStale)
	a.RecordTransition(device.TypeCurtain, device.ActionDelete, device.OutcomeStorageError)
	flush(t, a)

	snap := a.Snapshot()

	tests := []struct {
		deviceType string
		action     string
		outcome    string
		want       int64
	}{
		{"light", "create", "applied", 1},
		{"light", "update", "applied", 2},
		{"light", "update", "rejected_stale", 1},
		{"curtain", "delete", "storage_error", 1},
		{"light", "delete", "applied", 0},
	}

	for _, tt := range tests {
		got := findTransition(snap, tt.deviceType, tt.action, tt.outcome)
		if got != tt.want {
			t.Errorf("transitions[%s/%s/%s] = %d, want %d",
				tt.deviceType, tt.action, tt.outcome, got, tt.want)
		}
	}
}

// ===== Drops =====

func TestAggregatorDrops(t *testing.T) {
	t.Run("ByReason", func(t *testing.T) {
		a := NewAggregator(0)

		a.RecordDrop("decode_error")
		a.RecordDrop("decode_error")
		a.RecordDrop("validation_error")
		flush(t, a)

		snap := a.Snapshot()
		if got := snap.DroppedEvents["decode_error"]; got != 2 {
			t.Errorf("dropped_events[decode_error] = %d, want 2", got)
		}
		if got := snap.DroppedEvents["validation_error"]; got != 1 {
			t.Errorf("dropped_events[validation_error] = %d, want 1", got)
		}
	})

	t.Run("QueueFullNeverBlocks", func(t *testing.T) {
		a := NewAggregator(2)

		// Queue holds 2; everything beyond is dropped at the intake.
		for i := 0; i < 5; i++ {
			a.RecordDrop("decode_error")
		}
		flush(t, a)

		snap := a.Snapshot()
		if got := snap.DroppedEvents["decode_error"]; got != 2 {
			t.Errorf("dropped_events[decode_error] = %d, want 2", got)
		}
		if got := snap.DroppedEvents["queue_full"]; got != 3 {
			t.Errorf("dropped_events[queue_full] = %d, want 3", got)
		}
	})
}

// ===== Usage =====

func TestAggregatorUsage(t *testing.T) {
	t.Run("OnOffInterval", func(t *testing.T) {
		a := NewAggregator(0)
		base := time.Now().UTC()

		a.RecordStatus(device.TypeLight, "light-1", device.StatusOn, base)
		a.RecordStatus(device.TypeLight, "light-1", device.StatusOff, base.Add(90*time.Second))
		flush(t, a)

		snap := a.Snapshot()
		if got := snap.DeviceOnEvents["light"]; got != 1 {
			t.Errorf("device_on_events[light] = %d, want 1", got)
		}
		if got := snap.DeviceUsageSeconds["light"]; got != 90 {
			t.Errorf("device_usage_seconds[light] = %g, want 90", got)
		}
	})

	t.Run("RepeatedOnIsOneInterval", func(t *testing.T) {
		a := NewAggregator(0)
		base := time.Now().UTC()

		a.RecordStatus(device.TypeLight, "light-1", device.StatusOn, base)
		a.RecordStatus(device.TypeLight, "light-1", device.StatusOn, base.Add(10*time.Second))
		a.RecordStatus(device.TypeLight, "light-1", device.StatusOff, base.Add(60*time.Second))
		flush(t, a)

		snap := a.Snapshot()
		if got := snap.DeviceOnEvents["light"]; got != 1 {
			t.Errorf("device_on_events[light] = %d, want 1", got)
		}
		if got := snap.DeviceUsageSeconds["light"]; got != 60 {
			t.Errorf("device_usage_seconds[light] = %g, want 60", got)
		}
	})

	t.Run("RemovalClosesInterval", func(t *testing.T) {
		a := NewAggregator(0)
		base := time.Now().UTC()

		a.RecordStatus(device.TypeDoorLock, "lock-1", device.StatusUnlocked, base)
		a.RecordRemoval(device.TypeDoorLock, "lock-1", base.Add(30*time.Second))
		flush(t, a)

		snap := a.Snapshot()
		if got := snap.DeviceUsageSeconds["door_lock"]; got != 30 {
			t.Errorf("device_usage_seconds[door_lock] = %g, want 30", got)
		}
	})

	t.Run("OpenIntervalAccruesInSnapshot", func(t *testing.T) {
		a := NewAggregator(0)

		a.RecordStatus(device.TypeCurtain, "curtain-1", device.StatusOpen,
			time.Now().UTC().Add(-10*time.Second))
		flush(t, a)

		snap := a.Snapshot()
		got := snap.DeviceUsageSeconds["curtain"]
		if got < 9 || got > 60 {
			t.Errorf("device_usage_seconds[curtain] = %g, want roughly 10", got)
		}
	})

	t.Run("OffWithoutOnIsNoop", func(t *testing.T) {
		a := NewAggregator(0)

		a.RecordStatus(device.TypeLight, "light-1", device.StatusOff, time.Now().UTC())
		flush(t, a)

		snap := a.Snapshot()
		if got := snap.DeviceUsageSeconds["light"]; got != 0 {
			t.Errorf("device_usage_seconds[light] = %g, want 0", got)
		}
	})
}

// ===== Requests =====

func TestAggregatorRequests(t *testing.T) {
	a := NewAggregator(0)

	a.RecordRequest("/api/devices", "GET", 200, 0.004)
	a.RecordRequest("/api/devices", "GET", 200, 0.030)
	a.RecordRequest("/api/devices", "POST", 201, 0.120)
	a.RecordRequest("/api/devices/{id}", "GET", 404, 0.002)
	flush(t, a)

	snap := a.Snapshot()

	if got := findRequest(snap, "/api/devices", "GET", 200); got != 2 {
		t.Errorf("requests[/api/devices GET 200] = %d, want 2", got)
	}
	if got := findRequest(snap, "/api/devices", "POST", 201); got != 1 {
		t.Errorf("requests[/api/devices POST 201] = %d, want 1", got)
	}
	if got := findRequest(snap, "/api/devices/{id}", "GET", 404); got != 1 {
		t.Errorf("requests[/api/devices/{id} GET 404] = %d, want 1", got)
	}

	var lat *RouteLatency
	for i := range snap.Latency {
		if snap.Latency[i].Route == "/api/devices" {
			lat = &snap.Latency[i]
		}
	}
	if lat == nil {
		t.Fatal("latency histogram for /api/devices missing")
	}
	if lat.Count != 3 {
		t.Errorf("latency count = %d, want 3", lat.Count)
	}
	// 0.004 falls in the 0.005 bucket; 0.030 first fits 0.05; 0.120 first fits 0.25.
	if lat.BucketCounts[0] != 1 {
		t.Errorf("le=0.005 bucket = %d, want 1", lat.BucketCounts[0])
	}
	if lat.BucketCounts[3] != 2 {
		t.Errorf("le=0.05 bucket = %d, want 2 (cumulative)", lat.BucketCounts[3])
	}
	if lat.BucketCounts[len(lat.BucketCounts)-1] != 3 {
		t.Errorf("le=10 bucket = %d, want 3", lat.BucketCounts[len(lat.BucketCounts)-1])
	}
}

// ===== Mirror =====

// recordingMirror captures mirrored samples for assertions.
type recordingMirror struct {
	mu          sync.Mutex
	transitions []string
	latencies   []string
	usage       []string
}

func (m *recordingMirror) WriteTransition(deviceType, action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, deviceType+"/"+action+"/"+outcome)
}

func (m *recordingMirror) WriteRequestLatency(route, method string, status int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, method+" "+route)
}

func (m *recordingMirror) WriteUsageInterval(deviceType, deviceID string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = append(m.usage, deviceType+"/"+deviceID)
}

func TestAggregatorMirror(t *testing.T) {
	a := NewAggregator(0)
	mirror := &recordingMirror{}
	a.SetMirror(mirror)

	base := time.Now().UTC()
	a.RecordTransition(device.TypeLight, device.ActionCreate, device.OutcomeApplied)
	a.RecordRequest("/api/devices", "GET", 200, 0.01)
	a.RecordStatus(device.TypeLight, "light-1", device.StatusOn, base)
	a.RecordStatus(device.TypeLight, "light-1", device.StatusOff, base.Add(time.Second))
	flush(t, a)

	mirror.mu.Lock()
	defer mirror.mu.Unlock()

	if len(mirror.transitions) != 1 || mirror.transitions[0] != "light/create/applied" {
		t.Errorf("mirrored transitions = %v, want [light/create/applied]", mirror.transitions)
	}
	if len(mirror.latencies) != 1 || mirror.latencies[0] != "GET /api/devices" {
		t.Errorf("mirrored latencies = %v, want [GET /api/devices]", mirror.latencies)
	}
	if len(mirror.usage) != 1 || mirror.usage[0] != "light/light-1" {
		t.Errorf("mirrored usage = %v, want [light/light-1]", mirror.usage)
	}
}

// ===== Monotonicity =====

func TestAggregatorCountersOnlyGrow(t *testing.T) {
	a := NewAggregator(0)

	a.RecordTransition(device.TypeLight, device.ActionUpdate, device.OutcomeApplied)
	flush(t, a)
	first := findTransition(a.Snapshot(), "light", "update", "applied")

	// Later samples continue from the same totals.
	a.apply(sample{kind: kindTransition, deviceType: device.TypeLight,
		action: device.ActionUpdate, outcome: device.OutcomeApplied})
	second := findTransition(a.Snapshot(), "light", "update", "applied")

	if first != 1 || second != 2 {
		t.Errorf("counts = %d then %d, want 1 then 2", first, second)
	}
}

// ===== Concurrency =====

func TestAggregatorConcurrentRecording(t *testing.T) {
	a := NewAggregator(4096)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a.RecordTransition(device.TypeLight, device.ActionUpdate, device.OutcomeApplied)
			}
		}()
	}
	wg.Wait()
	flush(t, a)

	snap := a.Snapshot()
	applied := findTransition(snap, "light", "update", "applied")
	queueFull := snap.DroppedEvents["queue_full"]
	if applied+queueFull != 800 {
		t.Errorf("applied(%d) + queue_full(%d) = %d, want 800", applied, queueFull, applied+queueFull)
	}
	if applied != 800 {
		t.Errorf("applied = %d, want 800 (queue sized to hold all samples)", applied)
	}
}

// ===== Exposition =====

func TestWritePrometheus(t *testing.T) {
	a := NewAggregator(0)
	base := time.Now().UTC()

	a.RecordTransition(device.TypeLight, device.ActionCreate, device.OutcomeApplied)
	a.RecordTransition(device.TypeLight, device.ActionUpdate, device.OutcomeRejectedStale)
	a.RecordDrop("decode_error")
	a.RecordStatus(device.TypeLight, "light-1", device.StatusOn, base)
	a.RecordStatus(device.TypeLight, "light-1", device.StatusOff, base.Add(42*time.Second))
	a.RecordRequest("/api/devices", "GET", 200, 0.004)
	flush(t, a)

	var out strings.Builder
	if err := a.WritePrometheus(&out); err != nil {
		t.Fatalf("WritePrometheus() error = %v", err)
	}
	text := out.String()

	wantLines := []string{
		"# TYPE smarthome_transitions_total counter",
		`smarthome_transitions_total{device_type="light",action="create",outcome="applied"} 1`,
		`smarthome_transitions_total{device_type="light",action="update",outcome="rejected_stale"} 1`,
		`smarthome_events_dropped_total{reason="decode_error"} 1`,
		`smarthome_device_on_events_total{device_type="light"} 1`,
		`smarthome_device_usage_seconds_total{device_type="light"} 42`,
		`smarthome_http_requests_total{route="/api/devices",method="GET",status="200"} 1`,
		"# TYPE smarthome_http_request_duration_seconds histogram",
		`smarthome_http_request_duration_seconds_bucket{route="/api/devices",le="0.005"} 1`,
		`smarthome_http_request_duration_seconds_bucket{route="/api/devices",le="+Inf"} 1`,
		`smarthome_http_request_duration_seconds_count{route="/api/devices"} 1`,
		"smarthome_uptime_seconds ",
	}
	for _, want := range wantLines {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
