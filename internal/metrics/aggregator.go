package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadavnv/smart-home-core/internal/device"
)

// Logger defines the logging interface used by the Aggregator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Mirror receives a copy of applied samples for durable storage.
// Implementations must be non-blocking; a lost mirror never affects
// the in-process counters.
type Mirror interface {
	WriteTransition(deviceType, action, outcome string)
	WriteRequestLatency(route, method string, status int, seconds float64)
	WriteUsageInterval(deviceType, deviceID string, seconds float64)
}

// defaultQueueSize is the intake buffer length when none is configured.
const defaultQueueSize = 1024

// defaultLatencyBuckets are the histogram upper bounds in seconds.
var defaultLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// sampleKind discriminates the intake union.
type sampleKind int

const (
	kindTransition sampleKind = iota
	kindStatus
	kindRemoval
	kindRequest
	kindDrop
)

// sample is one observation flowing through the intake queue.
type sample struct {
	kind sampleKind

	deviceType device.Type
	deviceID   string
	action     device.Action
	outcome    device.Outcome
	status     device.Status
	at         time.Time

	route   string
	method  string
	code    int
	seconds float64

	reason string
}

// transitionKey identifies one transition counter series.
type transitionKey struct {
	DeviceType device.Type
	Action     device.Action
	Outcome    device.Outcome
}

// requestKey identifies one request counter series.
type requestKey struct {
	Route  string
	Method string
	Code   int
}

// histogram is a fixed-bucket latency distribution.
type histogram struct {
	counts []uint64
	sum    float64
	count  uint64
}

func newHistogram() *histogram {
	return &histogram{counts: make([]uint64, len(defaultLatencyBuckets))}
}

func (h *histogram) observe(v float64) {
	for i, bound := range defaultLatencyBuckets {
		if v <= bound {
			h.counts[i]++
		}
	}
	h.sum += v
	h.count++
}

// openInterval tracks a device that is currently in an active status.
type openInterval struct {
	deviceType device.Type
	since      time.Time
}

// Aggregator collects usage and reliability counters in memory.
//
// Recording is fire-and-forget: samples enter a bounded queue and a single
// consumer goroutine folds them into the counters. When the queue is full
// the sample is dropped and counted; the caller is never blocked.
//
// The Aggregator implements device.TransitionSink so the reconciler can
// feed it directly.
type Aggregator struct {
	intake chan sample
	logger Logger
	mirror Mirror

	// queueFull counts samples dropped at the intake, outside the
	// consumer loop.
	queueFull atomic.Int64

	mu          sync.Mutex
	transitions map[transitionKey]int64
	drops       map[string]int64
	onEvents    map[device.Type]int64
	usage       map[device.Type]float64
	open        map[string]openInterval
	requests    map[requestKey]int64
	latency     map[string]*histogram

	startTime time.Time
	done      chan struct{}
}

// NewAggregator creates an aggregator with the given intake queue size.
// Zero selects the default. Call Start before recording.
func NewAggregator(queueSize int) *Aggregator {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Aggregator{
		intake:      make(chan sample, queueSize),
		logger:      noopLogger{},
		transitions: make(map[transitionKey]int64),
		drops:       make(map[string]int64),
		onEvents:    make(map[device.Type]int64),
		usage:       make(map[device.Type]float64),
		open:        make(map[string]openInterval),
		requests:    make(map[requestKey]int64),
		latency:     make(map[string]*histogram),
		startTime:   time.Now().UTC(),
		done:        make(chan struct{}),
	}
}

// SetLogger sets the logger for the aggregator.
func (a *Aggregator) SetLogger(logger Logger) {
	a.logger = logger
}

// SetMirror sets the durable mirror for applied samples.
func (a *Aggregator) SetMirror(m Mirror) {
	a.mirror = m
}

// Start launches the consumer goroutine. It drains remaining samples and
// returns when ctx is cancelled. Done reports completion.
func (a *Aggregator) Start(ctx context.Context) {
	go a.run(ctx)
}

// Done is closed once the consumer goroutine has drained and exited.
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

func (a *Aggregator) run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case s := <-a.intake:
			a.apply(s)
		case <-ctx.Done():
			// Drain whatever is already queued, then stop.
			for {
				select {
				case s := <-a.intake:
					a.apply(s)
				default:
					a.logger.Info("metrics aggregator stopped")
					return
				}
			}
		}
	}
}

// record enqueues a sample without blocking. Full queue drops the sample.
func (a *Aggregator) record(s sample) {
	select {
	case a.intake <- s:
	default:
		a.queueFull.Add(1)
	}
}

// RecordTransition reports the outcome of a reconciliation attempt.
// Implements device.TransitionSink.
func (a *Aggregator) RecordTransition(deviceType device.Type, action device.Action, outcome device.Outcome) {
	a.record(sample{kind: kindTransition, deviceType: deviceType, action: action, outcome: outcome})
}

// RecordStatus reports a device's status after an applied mutation.
// Implements device.TransitionSink.
func (a *Aggregator) RecordStatus(deviceType device.Type, deviceID string, status device.Status, at time.Time) {
	a.record(sample{kind: kindStatus, deviceType: deviceType, deviceID: deviceID, status: status, at: at})
}

// RecordRemoval reports a device deletion, closing any open usage interval.
// Implements device.TransitionSink.
func (a *Aggregator) RecordRemoval(deviceType device.Type, deviceID string, at time.Time) {
	a.record(sample{kind: kindRemoval, deviceType: deviceType, deviceID: deviceID, at: at})
}

// RecordRequest reports one served HTTP request.
func (a *Aggregator) RecordRequest(route, method string, status int, seconds float64) {
	a.record(sample{kind: kindRequest, route: route, method: method, code: status, seconds: seconds})
}

// RecordDrop reports an event discarded before reconciliation, tagged with
// the reason it was dropped.
func (a *Aggregator) RecordDrop(reason string) {
	a.record(sample{kind: kindDrop, reason: reason})
}

// apply folds one sample into the counters. Called only from the consumer
// goroutine.
func (a *Aggregator) apply(s sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch s.kind {
	case kindTransition:
		a.transitions[transitionKey{s.deviceType, s.action, s.outcome}]++
		if a.mirror != nil {
			a.mirror.WriteTransition(string(s.deviceType), string(s.action), string(s.outcome))
		}

	case kindStatus:
		a.applyStatus(s)

	case kindRemoval:
		a.closeInterval(s.deviceID, s.at)

	case kindRequest:
		a.requests[requestKey{s.route, s.method, s.code}]++
		h, ok := a.latency[s.route]
		if !ok {
			h = newHistogram()
			a.latency[s.route] = h
		}
		h.observe(s.seconds)
		if a.mirror != nil {
			a.mirror.WriteRequestLatency(s.route, s.method, s.code, s.seconds)
		}

	case kindDrop:
		a.drops[s.reason]++
	}
}

// applyStatus maintains the on-event counter and usage intervals.
// Caller holds a.mu.
func (a *Aggregator) applyStatus(s sample) {
	at := s.at
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, wasOn := a.open[s.deviceID]
	isOn := s.status.IsActive()

	switch {
	case isOn && !wasOn:
		a.onEvents[s.deviceType]++
		a.open[s.deviceID] = openInterval{deviceType: s.deviceType, since: at}
	case !isOn && wasOn:
		a.closeInterval(s.deviceID, at)
	}
}

// closeInterval accumulates an open usage interval. Caller holds a.mu.
func (a *Aggregator) closeInterval(deviceID string, at time.Time) {
	iv, ok := a.open[deviceID]
	if !ok {
		return
	}
	delete(a.open, deviceID)

	if at.IsZero() {
		at = time.Now().UTC()
	}
	seconds := at.Sub(iv.since).Seconds()
	if seconds < 0 {
		seconds = 0
	}
	a.usage[iv.deviceType] += seconds

	if a.mirror != nil {
		a.mirror.WriteUsageInterval(string(iv.deviceType), deviceID, seconds)
	}
}
