package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/nadavnv/smart-home-core/internal/device"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by this package.
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

// Bus is the message bus surface the ingestor needs. *mqtt.Client
// satisfies it; tests substitute a fake.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
}

// Reconciler is the state surface events are applied to.
type Reconciler interface {
	Apply(ctx context.Context, ev device.Event) (*device.Device, error)
	Delete(ctx context.Context, id string) error
}

// DropSink counts events discarded before or during reconciliation.
type DropSink interface {
	RecordDrop(reason string)
}

// noopDrops discards drop samples.
type noopDrops struct{}

func (noopDrops) RecordDrop(string) {}

// Drop reasons reported to the sink.
const (
	dropDecodeError          = "decode_error"
	dropUnknownMethod        = "unknown_method"
	dropValidationError      = "validation_error"
	dropIncompleteDescriptor = "incomplete_descriptor"
	dropNotFound             = "not_found"
	dropStorageError         = "storage_error"
)

// Ingestor consumes device events from the message bus and applies them
// to the reconciler. A failed event is dropped and counted; ingestion
// never stops on bad input.
type Ingestor struct {
	bus    Bus
	rec    Reconciler
	drops  DropSink
	logger Logger

	// serviceID identifies this instance's own published events so they
	// are not reconciled twice.
	serviceID string
	qos       byte
}

// NewIngestor creates an ingestor. Call Start to begin consuming.
func NewIngestor(bus Bus, rec Reconciler, serviceID string, qos byte) *Ingestor {
	return &Ingestor{
		bus:       bus,
		rec:       rec,
		drops:     noopDrops{},
		logger:    noopLogger{},
		serviceID: serviceID,
		qos:       qos,
	}
}

// SetLogger sets the logger for the ingestor.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// SetDropSink sets the sink for dropped event counts.
func (i *Ingestor) SetDropSink(sink DropSink) {
	i.drops = sink
}

// Start subscribes to the device event hierarchy. Handlers run on the
// bus client's goroutines; ctx bounds each reconciliation.
func (i *Ingestor) Start(ctx context.Context) error {
	topic := i.bus.Topics().AllDeviceEvents()
	if err := i.bus.Subscribe(topic, i.qos, func(topic string, payload []byte) error {
		i.handleMessage(ctx, topic, payload)
		return nil
	}); err != nil {
		return err
	}

	i.logger.Info("event ingestion started", "topic", topic)
	return nil
}

// handleMessage processes one bus message. Errors are absorbed: the
// event is dropped, counted, and logged.
func (i *Ingestor) handleMessage(ctx context.Context, topic string, payload []byte) {
	deviceID, method, ok := i.bus.Topics().ParseDeviceEvent(topic)
	if !ok {
		i.drop(dropDecodeError, topic, "unparseable topic")
		return
	}

	env, err := decodeEnvelope(payload)
	if err != nil {
		i.drop(dropDecodeError, topic, err.Error())
		return
	}

	// Our own published events echo back through the broker.
	if env.Sender != "" && env.Sender == i.serviceID {
		i.logger.Debug("own event skipped", "topic", topic)
		return
	}

	switch method {
	case mqtt.MethodPost, mqtt.MethodUpdate:
		i.applyEvent(ctx, deviceID, env, topic)
	case mqtt.MethodDelete:
		i.deleteDevice(ctx, deviceID, topic)
	default:
		i.drop(dropUnknownMethod, topic, method)
	}
}

func (i *Ingestor) applyEvent(ctx context.Context, deviceID string, env *Envelope, topic string) {
	ev := device.Event{
		DeviceID:     deviceID,
		Source:       device.SourceMessaging,
		Type:         env.Type,
		Room:         env.Room,
		Name:         env.Name,
		Status:       env.Status,
		Payload:      env.Parameters,
		SequenceHint: env.Sequence,
		ObservedAt:   time.Now().UTC(),
	}

	dev, err := i.rec.Apply(ctx, ev)
	if err != nil {
		i.dropApplyError(err, topic)
		return
	}

	i.logger.Debug("event applied",
		"device_id", dev.ID,
		"version", dev.Version,
	)
}

func (i *Ingestor) deleteDevice(ctx context.Context, deviceID, topic string) {
	if err := i.rec.Delete(ctx, deviceID); err != nil {
		i.dropApplyError(err, topic)
		return
	}
	i.logger.Debug("device removed via event", "device_id", deviceID)
}

// dropApplyError maps a reconciliation error to a drop reason. Stale
// events are not counted here; the reconciler's transition sink already
// samples them.
func (i *Ingestor) dropApplyError(err error, topic string) {
	switch {
	case errors.Is(err, device.ErrStaleEvent):
		i.logger.Debug("stale event dropped", "topic", topic)
	case errors.Is(err, device.ErrIncompleteDescriptor):
		i.drop(dropIncompleteDescriptor, topic, err.Error())
	case errors.Is(err, device.ErrNotFound):
		i.drop(dropNotFound, topic, err.Error())
	case errors.Is(err, device.ErrStorage):
		i.drop(dropStorageError, topic, err.Error())
	default:
		i.drop(dropValidationError, topic, err.Error())
	}
}

func (i *Ingestor) drop(reason, topic, detail string) {
	i.drops.RecordDrop(reason)
	i.logger.Warn("event dropped",
		"reason", reason,
		"topic", topic,
		"detail", detail,
	)
}
