// Gray Relay - Pluggable Message Broker
//
// This is the main entry point for the Gray Relay daemon. Gray Relay
// routes messages from publishers to transport targets (file, MQTT,
// object storage, Redis streams) according to a JSON routing document,
// with strictly ordered per-target delivery and macro-expanded
// destination options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-relay/internal/audit"
	"github.com/nerrad567/gray-relay/internal/broker"
	"github.com/nerrad567/gray-relay/internal/infrastructure/config"
	"github.com/nerrad567/gray-relay/internal/infrastructure/database"
	"github.com/nerrad567/gray-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-relay/internal/infrastructure/logging"
	"github.com/nerrad567/gray-relay/internal/metrics"
	"github.com/nerrad567/gray-relay/internal/transport/file"
	"github.com/nerrad567/gray-relay/internal/transport/mqtt"
	"github.com/nerrad567/gray-relay/internal/transport/objectstore"
	"github.com/nerrad567/gray-relay/internal/transport/redis"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Relay",
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

	var observers []broker.DeliveryObserver

	// Open the delivery audit database (optional)
	if cfg.Audit.Enabled {
		db, openErr := database.Open(database.Config{
			Path:        cfg.Audit.Database.Path,
			WALMode:     cfg.Audit.Database.WALMode,
			BusyTimeout: cfg.Audit.Database.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening audit database: %w", openErr)
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()
		log.Info("audit database opened", "path", db.Path())

		repo := audit.NewSQLiteRepository(db.DB)
		if schemaErr := repo.EnsureSchema(ctx); schemaErr != nil {
			return fmt.Errorf("preparing audit schema: %w", schemaErr)
		}

		if cfg.Audit.RetentionDays > 0 {
			retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
			pruned, pruneErr := repo.Prune(ctx, retention)
			if pruneErr != nil {
				log.Warn("pruning audit records failed", "error", pruneErr)
			} else if pruned > 0 {
				log.Info("pruned audit records",
					"count", pruned,
					"retention_days", cfg.Audit.RetentionDays,
				)
			}
		}

		observers = append(observers, audit.NewRecorder(repo, log.With("component", "audit")))
	} else {
		log.Info("delivery audit disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.Metrics.Enabled {
		influxClient, connectErr := influxdb.Connect(cfg.Metrics)
		if connectErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connectErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.Metrics.URL,
			"org", cfg.Metrics.Org,
			"bucket", cfg.Metrics.Bucket,
		)

		// Async write failures surface here, not at write time
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		observers = append(observers, metrics.NewObserver(influxClient))
	} else {
		log.Info("delivery metrics disabled")
	}

	// Register the built-in transports
	registry, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("registering transports: %w", err)
	}
	log.Info("transports registered", "protocols", registry.Protocols())

	// Read the routing document and bring the broker up
	document, err := os.ReadFile(cfg.Broker.RoutingDocument)
	if err != nil {
		return fmt.Errorf("reading routing document: %w", err)
	}

	b := broker.New(broker.Options{
		Registry:  registry,
		Logger:    log.With("component", "broker"),
		QueueSize: cfg.Broker.QueueSize,
		Observers: observers,
	})
	if err := b.Initialize(document); err != nil {
		return fmt.Errorf("initialising broker: %w", err)
	}
	log.Info("broker initialised",
		"document", cfg.Broker.RoutingDocument,
		"targets", b.TargetCount(),
		"pipes", b.PipeCount(),
	)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// In-flight deliveries complete; queued jobs are discarded.
	b.Shutdown()

	log.Info("Gray Relay stopped")
	return nil
}

// buildRegistry registers the built-in transport factories.
func buildRegistry() (*broker.Registry, error) {
	registry := broker.NewRegistry()

	factories := map[string]broker.TransportFactory{
		file.Protocol:        file.New,
		mqtt.Protocol:        mqtt.New,
		objectstore.Protocol: objectstore.New,
		redis.Protocol:       redis.New,
	}
	for protocol, factory := range factories {
		if err := registry.Register(protocol, factory); err != nil {
			return nil, fmt.Errorf("registering %s: %w", protocol, err)
		}
	}

	return registry, nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
