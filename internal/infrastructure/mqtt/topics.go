package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the topic namespace used when no prefix is configured.
// All runtime topics are built as {prefix}/{category}/...
const DefaultTopicPrefix = "nadavnv-smart-home"

// Device event methods carried in the final topic segment.
// Every device mutation travels as {prefix}/devices/{device_id}/{method}.
const (
	// MethodPost announces device creation.
	MethodPost = "post"

	// MethodUpdate announces a device state or parameter change.
	MethodUpdate = "update"

	// MethodDelete announces device removal.
	MethodDelete = "delete"
)

// Topics provides builders for the MQTT topic hierarchy.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Prefix: cfg.TopicPrefix}
//	topic := topics.DeviceEvent("light-1", mqtt.MethodUpdate)
//	// Returns: "nadavnv-smart-home/devices/light-1/update"
//
// A zero-value Topics falls back to DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) base() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DeviceEvent returns the topic for a device mutation event.
//
// Example: nadavnv-smart-home/devices/light-1/update
func (t Topics) DeviceEvent(deviceID, method string) string {
	return fmt.Sprintf("%s/devices/%s/%s", t.base(), deviceID, method)
}

// AllDeviceEvents returns a pattern matching every device mutation event.
//
// Pattern: nadavnv-smart-home/devices/+/+
func (t Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/devices/+/+", t.base())
}

// ParseDeviceEvent extracts the device ID and method from a device event
// topic. Returns ok=false for topics outside the device event hierarchy
// or with empty segments.
func (t Topics) ParseDeviceEvent(topic string) (deviceID, method string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.base()+"/devices/")
	if !found {
		return "", "", false
	}
	deviceID, method, found = strings.Cut(rest, "/")
	if !found || deviceID == "" || method == "" || strings.Contains(method, "/") {
		return "", "", false
	}
	return deviceID, method, true
}

// SystemStatus returns the service online/offline status topic.
// Used for the LWT and graceful shutdown announcements.
//
// Example: nadavnv-smart-home/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.base())
}

// AllTopics returns a pattern matching the entire namespace.
// Use with caution - this receives ALL traffic.
//
// Pattern: nadavnv-smart-home/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.base())
}
