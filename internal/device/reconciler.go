package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Reconciler.
// This allows different logging implementations to be used.
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

// Action names the kind of mutation a transition sample describes.
type Action string

// Action constants.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Outcome names the result of a reconciliation attempt.
type Outcome string

// Outcome constants.
const (
	OutcomeApplied       Outcome = "applied"
	OutcomeRejectedStale Outcome = "rejected_stale"
	OutcomeStorageError  Outcome = "storage_error"
)

// TransitionSink receives reconciliation outcome samples.
// Implementations must not block; delivery is fire-and-forget.
type TransitionSink interface {
	// RecordTransition reports the outcome of a mutation attempt.
	RecordTransition(deviceType Type, action Action, outcome Outcome)

	// RecordStatus reports the status a device holds after an applied
	// mutation. Used for usage interval accounting.
	RecordStatus(deviceType Type, deviceID string, status Status, at time.Time)

	// RecordRemoval reports that a device was deleted, closing any open
	// usage interval.
	RecordRemoval(deviceType Type, deviceID string, at time.Time)
}

// noopSink is a sink that discards all samples.
type noopSink struct{}

func (noopSink) RecordTransition(Type, Action, Outcome)       {}
func (noopSink) RecordStatus(Type, string, Status, time.Time) {}
func (noopSink) RecordRemoval(Type, string, time.Time)        {}

// defaultStorageTimeout bounds record store calls when no timeout is configured.
const defaultStorageTimeout = 5 * time.Second

// lifecycle tracks where a device is in its existence cycle.
// Absent devices have never been seen; deleted devices keep their entry
// so recreation can restart the version sequence at 1.
type lifecycle int

const (
	lifecycleAbsent lifecycle = iota
	lifecycleActive
	lifecycleDeleted
)

// entry holds one device's authoritative state and its serialization lock.
// The lock is held for the full mutation including the storage write, so
// mutations for one device apply strictly one at a time while devices
// remain independent of each other.
type entry struct {
	mu     sync.Mutex
	state  lifecycle
	device *Device
}

// Reconciler owns the authoritative in-memory device state and applies
// mutations from both surfaces with per-device serialization.
//
// Concurrency model:
//   - mu guards only the entries map, never device state.
//   - Each entry carries its own mutex; a slow storage write for one
//     device never blocks mutations or reads of any other device.
//
// Version rules:
//   - Creation stores version 1.
//   - Every applied update or status change increments the version.
//   - Recreation after deletion starts again at version 1.
//
// All public methods are thread-safe.
type Reconciler struct {
	repo    Repository
	entries map[string]*entry
	mu      sync.RWMutex

	logger         Logger
	sink           TransitionSink
	storageTimeout time.Duration
}

// NewReconciler creates a reconciler backed by the given repository.
// storageTimeout bounds each record store call; zero selects the default.
func NewReconciler(repo Repository, storageTimeout time.Duration) *Reconciler {
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}
	return &Reconciler{
		repo:           repo,
		entries:        make(map[string]*entry),
		logger:         noopLogger{},
		sink:           noopSink{},
		storageTimeout: storageTimeout,
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// SetSink sets the transition sink for outcome samples.
func (r *Reconciler) SetSink(sink TransitionSink) {
	r.sink = sink
}

// Load replaces the in-memory state with the repository contents.
// This should be called once on application startup, before serving.
func (r *Reconciler) Load(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*entry, len(devices))
	for i := range devices {
		d := devices[i]
		r.entries[d.ID] = &entry{state: lifecycleActive, device: d.DeepCopy()}
	}

	r.logger.Info("device state loaded", "count", len(devices))
	return nil
}

// Create registers a new device. The descriptor must be complete: identity,
// type, a status from the type's vocabulary, and the full parameter set.
// The stored device is version 1. Returns ErrExists if the ID is active.
func (r *Reconciler) Create(ctx context.Context, d *Device) (*Device, error) {
	if d == nil {
		return nil, ErrInvalid
	}

	e := r.entryFor(d.ID)
	e.mu.Lock()
	defer e.mu.Unlock()

	return r.createLocked(ctx, e, d)
}

// Update applies a partial mutation to an active device. Present parameter
// keys overwrite stored values; missing keys are untouched. A non-nil status
// replaces the stored status. seqHint below the stored version marks the
// event stale: nothing changes and ErrStaleEvent is returned.
func (r *Reconciler) Update(ctx context.Context, id string, params Parameters, status *Status, seqHint int64) (*Device, error) {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	return r.updateLocked(ctx, e, params, status, seqHint)
}

// Delete removes an active device. The entry is retained so a later
// recreation restarts the version sequence at 1.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	return r.deleteLocked(ctx, e)
}

// Apply routes a mutation observation to the right operation. Known active
// devices get a partial update. Unknown devices are registered implicitly,
// but only when the event carries a complete descriptor; otherwise
// ErrIncompleteDescriptor is returned and nothing changes.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (*Device, error) {
	e := r.entryFor(ev.DeviceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == lifecycleActive {
		return r.updateLocked(ctx, e, ev.Payload, ev.Status, ev.SequenceHint)
	}

	// Unknown device: register only from a complete descriptor.
	if ev.Type == "" || ev.Room == "" || ev.Name == "" || ev.Status == nil {
		return nil, ErrIncompleteDescriptor
	}
	for _, key := range requiredParams[ev.Type] {
		if _, ok := ev.Payload[key]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrIncompleteDescriptor, key)
		}
	}

	d := &Device{
		ID:         ev.DeviceID,
		Type:       ev.Type,
		Room:       ev.Room,
		Name:       ev.Name,
		Status:     *ev.Status,
		Parameters: ev.Payload,
	}
	return r.createLocked(ctx, e, d)
}

// Get returns a deep copy of an active device's state.
// Returns ErrNotFound for unknown or deleted devices.
func (r *Reconciler) Get(id string) (*Device, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != lifecycleActive {
		return nil, ErrNotFound
	}
	return e.device.DeepCopy(), nil
}

// GetAll returns deep copies of every active device.
// The snapshot is taken per device; a mutation mid-iteration yields either
// the old or the new state for that device, never a partial one.
func (r *Reconciler) GetAll() []Device {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	devices := make([]Device, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.state == lifecycleActive {
			devices = append(devices, *e.device.DeepCopy())
		}
		e.mu.Unlock()
	}
	return devices
}

// IDs returns the identifiers of every active device.
func (r *Reconciler) IDs() []string {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.state == lifecycleActive {
			ids = append(ids, e.device.ID)
		}
		e.mu.Unlock()
	}
	return ids
}

// entryFor returns the entry for an ID, creating an absent one on demand.
func (r *Reconciler) entryFor(id string) *entry {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e
	}
	e = &entry{state: lifecycleAbsent}
	r.entries[id] = e
	return e
}

// createLocked registers a device. Caller holds e.mu.
func (r *Reconciler) createLocked(ctx context.Context, e *entry, d *Device) (*Device, error) {
	if e.state == lifecycleActive {
		return nil, ErrExists
	}

	if err := ValidateNew(d); err != nil {
		return nil, err
	}

	stored := d.DeepCopy()
	stored.Version = 1
	stored.LastUpdated = time.Now().UTC()

	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	defer cancel()

	if err := r.repo.Create(sctx, stored); err != nil {
		r.sink.RecordTransition(stored.Type, ActionCreate, OutcomeStorageError)
		r.logger.Error("device create failed", "device_id", stored.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	e.state = lifecycleActive
	e.device = stored

	r.sink.RecordTransition(stored.Type, ActionCreate, OutcomeApplied)
	r.sink.RecordStatus(stored.Type, stored.ID, stored.Status, stored.LastUpdated)
	r.logger.Info("device created",
		"device_id", stored.ID,
		"type", stored.Type,
		"version", stored.Version,
	)
	return stored.DeepCopy(), nil
}

// updateLocked applies a partial mutation. Caller holds e.mu.
//
// The mutation is built on a copy and committed only after the storage
// write succeeds, so a storage failure leaves the in-memory state exactly
// as it was.
func (r *Reconciler) updateLocked(ctx context.Context, e *entry, params Parameters, status *Status, seqHint int64) (*Device, error) {
	if e.state != lifecycleActive {
		return nil, ErrNotFound
	}
	cur := e.device

	if seqHint > 0 && seqHint < cur.Version {
		r.sink.RecordTransition(cur.Type, ActionUpdate, OutcomeRejectedStale)
		r.logger.Debug("stale event discarded",
			"device_id", cur.ID,
			"sequence_hint", seqHint,
			"version", cur.Version,
		)
		return nil, fmt.Errorf("%w: hint %d below version %d", ErrStaleEvent, seqHint, cur.Version)
	}

	if err := ValidateUpdate(cur.Type, params, status); err != nil {
		return nil, err
	}

	next := cur.DeepCopy()
	if next.Parameters == nil && len(params) > 0 {
		next.Parameters = make(Parameters, len(params))
	}
	for k, v := range params {
		next.Parameters[k] = deepCopyValue(v)
	}
	if status != nil {
		next.Status = *status
	}
	next.Version = cur.Version + 1
	next.LastUpdated = time.Now().UTC()

	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	defer cancel()

	if err := r.repo.Update(sctx, next); err != nil {
		r.sink.RecordTransition(cur.Type, ActionUpdate, OutcomeStorageError)
		r.logger.Error("device update failed", "device_id", cur.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	e.device = next

	r.sink.RecordTransition(next.Type, ActionUpdate, OutcomeApplied)
	r.sink.RecordStatus(next.Type, next.ID, next.Status, next.LastUpdated)
	r.logger.Debug("device updated",
		"device_id", next.ID,
		"version", next.Version,
	)
	return next.DeepCopy(), nil
}

// deleteLocked removes a device. Caller holds e.mu.
func (r *Reconciler) deleteLocked(ctx context.Context, e *entry) error {
	if e.state != lifecycleActive {
		return ErrNotFound
	}
	cur := e.device

	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	defer cancel()

	if err := r.repo.Delete(sctx, cur.ID); err != nil {
		r.sink.RecordTransition(cur.Type, ActionDelete, OutcomeStorageError)
		r.logger.Error("device delete failed", "device_id", cur.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	e.state = lifecycleDeleted
	e.device = nil

	r.sink.RecordTransition(cur.Type, ActionDelete, OutcomeApplied)
	r.sink.RecordRemoval(cur.Type, cur.ID, time.Now().UTC())
	r.logger.Info("device deleted", "device_id", cur.ID)
	return nil
}
