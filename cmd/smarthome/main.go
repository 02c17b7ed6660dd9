// Smart Home Core - Device State Backend
//
// This is the main entry point for the smart-home core service. It owns
// the authoritative state of every registered device and keeps it
// consistent across concurrent writers:
//   - MQTT event ingestion with last-applied-wins conflict handling
//   - REST API and WebSocket fan-out for user interfaces
//   - In-process analytics with Prometheus-style exposition
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nadavnv/smart-home-core/migrations"

	"github.com/nadavnv/smart-home-core/internal/api"
	"github.com/nadavnv/smart-home-core/internal/device"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/config"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/database"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/influxdb"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/logging"
	"github.com/nadavnv/smart-home-core/internal/infrastructure/mqtt"
	"github.com/nadavnv/smart-home-core/internal/ingest"
	"github.com/nadavnv/smart-home-core/internal/metrics"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting smart-home core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise the device reconciler and warm its cache from storage
	repo := device.NewSQLiteRepository(db.DB)
	reconciler := device.NewReconciler(repo, cfg.GetStorageWriteTimeout())
	reconciler.SetLogger(log)

	if loadErr := reconciler.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading device state: %w", loadErr)
	}
	log.Info("device state loaded", "devices", len(reconciler.IDs()))

	// Start the metrics aggregator; the reconciler reports every applied
	// and rejected transition into it
	aggregator := metrics.NewAggregator(cfg.Metrics.QueueSize)
	aggregator.SetLogger(log)
	reconciler.SetSink(aggregator)

	// Connect to InfluxDB (optional durable mirror for analytics)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		aggregator.SetMirror(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Own cancel for the aggregator so an early error return still stops
	// its consumer goroutine. Defers run LIFO: cancel fires before the
	// drain wait.
	aggCtx, aggCancel := context.WithCancel(ctx)
	aggregator.Start(aggCtx)
	defer func() { <-aggregator.Done() }()
	defer aggCancel()

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Publisher announces locally applied mutations; ingestor consumes
	// peer events and filters our own publications by service ID
	publisher := ingest.NewPublisher(mqttClient, cfg.Service.ID, byte(cfg.MQTT.QoS))
	publisher.SetLogger(log)

	ingestor := ingest.NewIngestor(mqttClient, reconciler, cfg.Service.ID, byte(cfg.MQTT.QoS))
	ingestor.SetLogger(log)
	ingestor.SetDropSink(aggregator)
	if startErr := ingestor.Start(ctx); startErr != nil {
		return fmt.Errorf("starting event ingestor: %w", startErr)
	}
	log.Info("event ingestor subscribed", "prefix", cfg.MQTT.TopicPrefix)

	// Start the API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Reconciler: reconciler,
		Metrics:    aggregator,
		Publisher:  publisher,
		Database:   db,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting requests)
	// 2. MQTT (stops event flow)
	// 3. Aggregator drain, InfluxDB flush
	// 4. Database

	log.Info("smart-home core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SMARTHOME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SMARTHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
