// Package influxdb provides InfluxDB connectivity for the smart-home core.
//
// It wraps the official influxdb-client-go v2 library with the patterns the
// core uses for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package is the durable mirror behind the in-process metrics
// aggregator. Aggregation and exposition happen in memory; samples are
// additionally streamed here, best-effort, for long-term retention:
//   - Reconciliation outcomes (applied, rejected, failed)
//   - HTTP request latency observations
//   - Device usage intervals
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "smarthome",
//	    Bucket: "metrics",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Mirror a reconciliation outcome
//	client.WriteTransition("light", "update", "applied")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly. A lost mirror
// never blocks or fails the serving path.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency samples.
package influxdb
