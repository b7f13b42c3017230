// attrcycled steps device attributes through configured value tables.
//
// Each configured cycler owns a list of values for one attribute of one
// device. A trigger (MQTT or HTTP) moves the active index forward or back
// with wrap-around, pushes the new value to the device and, for persistent
// cyclers, saves the index after a debounce delay so it survives restarts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/attrcycle/internal/api"
	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/history"
	"github.com/nerrad567/attrcycle/internal/infrastructure/config"
	"github.com/nerrad567/attrcycle/internal/infrastructure/database"
	"github.com/nerrad567/attrcycle/internal/infrastructure/influxdb"
	"github.com/nerrad567/attrcycle/internal/infrastructure/logging"
	"github.com/nerrad567/attrcycle/internal/infrastructure/mqtt"
	"github.com/nerrad567/attrcycle/internal/settings"
	"github.com/nerrad567/attrcycle/internal/target"
	"github.com/nerrad567/attrcycle/internal/trigger"

	_ "github.com/nerrad567/attrcycle/migrations"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// shutdownFlushTimeout bounds the final save of pending cycler state.
const shutdownFlushTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
// Cleanup runs in reverse order of construction via defers.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting attrcycled", "version", version, "commit", commit, "build_date", date)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "cyclers", len(cfg.Cyclers))

	var db *database.DB
	if cfg.NeedsDatabase() {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", db.Path())
	}

	store, closeStore, err := openStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var events *history.SQLiteRepository
	var recorder *history.Recorder
	if cfg.History.Enabled {
		events = history.NewSQLiteRepository(db.DB)
		pruneHistory(ctx, events, cfg.History.RetentionDays, log)

		recorder = history.NewRecorder(events, cfg.History.Buffer, nil)
		recorder.SetLogger(log.Component("history"))
		recorder.Start()
		defer func() {
			recorder.Close()
			if n := recorder.Dropped(); n > 0 {
				log.Warn("cycle events dropped from history", "count", n)
			}
		}()
	}

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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topic_prefix", mqttClient.Topics().Prefix(),
	)

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	devices := target.NewPool(mqttClient, mqttClient.Topics(), mqttClient.QoS())
	registry, err := buildRegistry(cfg, store, devices, log, newEventRecorder(log, influxClient, recorder))
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		if flushErr := registry.Flush(flushCtx); flushErr != nil {
			log.Error("saving pending cycler state failed", "error", flushErr)
		}
		registry.Close()
	}()
	log.Info("cyclers registered", "cyclers", registry.Count(), "devices", devices.Devices())

	// Restore before subscribing so a trigger never races the saved index.
	if restoreErr := registry.Restore(ctx, store); restoreErr != nil {
		log.Warn("restoring cycler state failed, starting from defaults", "error", restoreErr)
	}

	source := trigger.NewSource(mqttClient, registry, mqttClient.Topics(), mqttClient.QoS())
	source.SetLogger(log.Component("trigger"))
	if startErr := source.Start(); startErr != nil {
		return fmt.Errorf("starting trigger source: %w", startErr)
	}
	defer func() {
		if stopErr := source.Stop(); stopErr != nil {
			log.Warn("unsubscribing triggers failed", "error", stopErr)
		}
	}()
	for _, ctrl := range registry.List() {
		if pubErr := source.PublishState(ctrl.Snapshot()); pubErr != nil {
			log.Warn("publishing initial state failed", "cycler", ctrl.Table().ID(), "error", pubErr)
		}
	}

	checks := map[string]api.HealthChecker{
		"settings": store,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log.Component("api"),
		Controllers: registry,
		Checks:      checks,
		History:     historyLister(events),
		OnTrigger: func(snap cycle.Snapshot) {
			if pubErr := source.PublishState(snap); pubErr != nil {
				log.Warn("publishing cycler state failed", "cycler", snap.ID, "error", pubErr)
			}
		},
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// openDatabase opens the SQLite database and applies the embedded migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// openStore opens the configured settings backend. db is only used by the
// sqlite backend. The returned close function is always non-nil.
func openStore(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (settings.Store, func(), error) {
	noop := func() {}

	switch cfg.Settings.Backend {
	case settings.BackendSQLite:
		if db == nil {
			return nil, noop, fmt.Errorf("sqlite backend: database not open")
		}
		store := settings.NewSQLiteStore(db.DB)
		store.SetLogger(log.Component("settings"))
		log.Info("settings store ready", "backend", settings.BackendSQLite, "path", db.Path())
		return store, noop, nil

	case settings.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closeRedis := func() {
			log.Info("closing Redis connection")
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}
		store := settings.NewRedisStore(rdb)
		store.SetLogger(log.Component("settings"))
		if err := store.HealthCheck(ctx); err != nil {
			closeRedis()
			return nil, noop, fmt.Errorf("connecting to Redis: %w", err)
		}
		log.Info("settings store ready", "backend", settings.BackendRedis, "addr", cfg.Redis.Addr)
		return store, closeRedis, nil

	case settings.BackendMemory:
		store := settings.NewMemoryStore()
		store.SetLogger(log.Component("settings"))
		log.Warn("settings store is in memory, cycler state will not survive restarts")
		return store, noop, nil

	default:
		return nil, noop, settings.ValidateBackend(cfg.Settings.Backend)
	}
}

// pruneHistory removes events older than the retention period. Failure is
// logged; the service still starts.
func pruneHistory(ctx context.Context, repo history.Repository, days int, log *logging.Logger) {
	if days <= 0 {
		return
	}
	before := time.Now().AddDate(0, 0, -days)
	n, err := repo.Prune(ctx, before)
	if err != nil {
		log.Warn("pruning event history failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("event history pruned", "removed", n, "retention_days", days)
	}
}

// historyLister returns nil, not a typed nil pointer, when history is off.
func historyLister(repo *history.SQLiteRepository) api.History {
	if repo == nil {
		return nil
	}
	return repo
}
