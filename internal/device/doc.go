// Package device provides the device state reconciler for the smart-home core.
//
// The reconciler owns the authoritative view of every appliance in the home
// and applies mutations arriving from two surfaces: the HTTP API and the
// MQTT event ingestor. Both funnel through the same validation and ordering
// rules, so a mutation behaves identically regardless of where it came from.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                         Device Reconciler                           │
//	│                                                                     │
//	│  ┌────────────────┐    ┌──────────────────┐    ┌────────────────┐   │
//	│  │   Reconciler   │    │    Repository    │    │   Validation   │   │
//	│  │ (reconciler.go)│───▶│  (repository.go) │    │ (validation.go)│   │
//	│  │                │    │                  │    │                │   │
//	│  │ • Per-device   │    │ • SQLite queries │    │ • Type schemas │   │
//	│  │   serialization│    │ • JSON marshal   │    │ • Status vocab │   │
//	│  │ • Versioning   │    │                  │    │ • Param ranges │   │
//	│  └────────────────┘    └──────────────────┘    └────────────────┘   │
//	│        │                        │                                   │
//	└────────│────────────────────────│───────────────────────────────────┘
//	         │                        │
//	         ▼                        ▼
//	┌──────────────────┐     ┌──────────────────────┐
//	│ HTTP API / MQTT  │     │   SQLite Database    │
//	│ event ingestor   │     │   (devices table)    │
//	└──────────────────┘     └──────────────────────┘
//
// # Concurrency
//
// Each device has its own mutex, held for the full mutation including the
// bounded storage write. Mutations for one device apply strictly in order;
// devices never contend with each other and there is no global write lock.
//
// # Versioning and staleness
//
// A created device is version 1, and every applied mutation increments the
// version. Events may carry a sequence hint (the sender's belief of the
// current version); a hint below the stored version marks the event stale
// and it is discarded without side effects, counted via the transition
// sink. Recreating a deleted device restarts the sequence at version 1.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	rec := device.NewReconciler(repo, cfg.GetStorageWriteTimeout())
//	rec.SetLogger(log)
//	rec.SetSink(aggregator)
//
//	// Load persisted state on startup
//	if err := rec.Load(ctx); err != nil {
//	    return err
//	}
//
//	// Register a device
//	dev, err := rec.Create(ctx, &device.Device{
//	    ID:     "light-1",
//	    Name:   "Ceiling Light",
//	    Room:   "living_room",
//	    Type:   device.TypeLight,
//	    Status: device.StatusOff,
//	    Parameters: device.Parameters{
//	        "brightness": 50, "color": "#ffffff",
//	        "is_dimmable": true, "dynamic_color": false,
//	    },
//	})
//
//	// Apply an observation from the message bus
//	dev, err = rec.Apply(ctx, device.Event{
//	    DeviceID:     "light-1",
//	    Source:       device.SourceMessaging,
//	    Payload:      device.Parameters{"brightness": 80},
//	    SequenceHint: 1,
//	})
//
// # Thread Safety
//
// The Reconciler is safe for concurrent use. The Repository implementation
// must also be thread-safe.
package device
