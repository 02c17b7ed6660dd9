package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nadavnv/smart-home-core/internal/device"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/mqtt"
)

// PublishBus is the message bus surface the publisher needs.
type PublishBus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Topics() mqtt.Topics
}

// Publisher announces applied mutations on the message bus so device
// firmware and peer instances observe state changes.
//
// Outbound envelopes carry the full device state, a unique message ID,
// and this instance's sender ID for loopback filtering on the other end.
type Publisher struct {
	bus       PublishBus
	logger    Logger
	serviceID string
	qos       byte
}

// NewPublisher creates a publisher identified by serviceID.
func NewPublisher(bus PublishBus, serviceID string, qos byte) *Publisher {
	return &Publisher{
		bus:       bus,
		logger:    noopLogger{},
		serviceID: serviceID,
		qos:       qos,
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// DeviceCreated announces a newly registered device.
func (p *Publisher) DeviceCreated(d *device.Device) error {
	return p.publishState(d, mqtt.MethodPost)
}

// DeviceUpdated announces an applied mutation.
func (p *Publisher) DeviceUpdated(d *device.Device) error {
	return p.publishState(d, mqtt.MethodUpdate)
}

// DeviceDeleted announces a device removal.
func (p *Publisher) DeviceDeleted(deviceID string) error {
	env := Envelope{
		DeviceID:  deviceID,
		Sender:    p.serviceID,
		MessageID: uuid.NewString(),
	}
	return p.publish(p.bus.Topics().DeviceEvent(deviceID, mqtt.MethodDelete), env)
}

func (p *Publisher) publishState(d *device.Device, method string) error {
	status := d.Status
	env := Envelope{
		DeviceID:   d.ID,
		Sender:     p.serviceID,
		MessageID:  uuid.NewString(),
		Sequence:   d.Version,
		Type:       d.Type,
		Room:       d.Room,
		Name:       d.Name,
		Status:     &status,
		Parameters: d.Parameters,
		Version:    d.Version,
	}
	return p.publish(p.bus.Topics().DeviceEvent(d.ID, method), env)
}

func (p *Publisher) publish(topic string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding event envelope: %w", err)
	}

	if err := p.bus.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("event publish failed", "topic", topic, "error", err)
		return err
	}

	p.logger.Debug("event published", "topic", topic, "message_id", env.MessageID)
	return nil
}
