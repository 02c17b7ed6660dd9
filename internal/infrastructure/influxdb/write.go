package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTransition records a reconciliation outcome sample.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceType: Device type (e.g., "light", "water_heater")
//   - action: Mutation kind ("create", "update", "delete")
//   - outcome: Result ("applied", "rejected_stale", "storage_error")
//
// Example:
//
//	client.WriteTransition("light", "update", "applied")
func (c *Client) WriteTransition(deviceType, action, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_transitions",
		map[string]string{
			"device_type": deviceType,
			"action":      action,
			"outcome":     outcome,
		},
		map[string]interface{}{
			"count": int64(1),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRequestLatency records an HTTP request observation.
//
// Parameters:
//   - route: Route pattern (e.g., "/api/devices/{id}")
//   - method: HTTP method
//   - status: Response status code
//   - seconds: Request duration in seconds
func (c *Client) WriteRequestLatency(route, method string, status int, seconds float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"http_requests",
		map[string]string{
			"route":  route,
			"method": method,
		},
		map[string]interface{}{
			"status":           status,
			"duration_seconds": seconds,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteUsageInterval records a completed device on-interval.
//
// Used for long-term usage analytics; emitted when a device leaves its
// active status (on, open, unlocked) or is deleted while active.
//
// Parameters:
//   - deviceType: Device type
//   - deviceID: Device identifier
//   - seconds: Duration the device spent active
func (c *Client) WriteUsageInterval(deviceType, deviceID string, seconds float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_usage",
		map[string]string{
			"device_type": deviceType,
			"device_id":   deviceID,
		},
		map[string]interface{}{
			"usage_seconds": seconds,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
