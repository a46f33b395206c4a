// Railrunner - autonomous rail vehicle automation
//
// This is the main entry point for the railrunner service. It connects to
// the world host over MQTT, drives automated trains through their station
// cycle and exposes trigger management over an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/railrunner/internal/api"
	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/bridge"
	"github.com/nerrad567/railrunner/internal/engine"
	"github.com/nerrad567/railrunner/internal/infrastructure/config"
	"github.com/nerrad567/railrunner/internal/infrastructure/database"
	"github.com/nerrad567/railrunner/internal/infrastructure/datafile"
	"github.com/nerrad567/railrunner/internal/infrastructure/influxdb"
	"github.com/nerrad567/railrunner/internal/infrastructure/logging"
	"github.com/nerrad567/railrunner/internal/infrastructure/mqtt"
	"github.com/nerrad567/railrunner/internal/scheduler"
	"github.com/nerrad567/railrunner/internal/trigger"
	"github.com/nerrad567/railrunner/migrations"
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

// shutdownTimeout bounds how long the engine gets to release every
// automated vehicle on shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear start-up sequence
	log := logging.Default()
	log.Info("starting railrunner",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Persistence
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close(log)

	// Connect to MQTT broker
	topics := mqtt.NewTopics(cfg.World.TopicPrefix)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
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
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", topics.Prefix,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	checks := map[string]api.HealthChecker{"mqtt": mqttClient}
	if store.db != nil {
		checks["database"] = store.db
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Event loop: every engine call happens on this goroutine.
	loop := scheduler.NewLoop(cfg.Automation.TickInterval(), log.Component("loop"))
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	// Host bridge
	hostBridge, err := bridge.New(bridge.Options{
		MQTT:   mqttClient,
		Topics: topics,
		Loop:   loop,
		QoS:    byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		Logger: log.Component("bridge"),
	})
	if err != nil {
		stopLoop()
		return fmt.Errorf("creating host bridge: %w", err)
	}
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	go hostBridge.Run(bridgeCtx)
	defer func() {
		// Loop first: the bridge flush must see every queued command.
		stopLoop()
		<-loop.Done()
		stopBridge()
		<-hostBridge.Done()
	}()

	eng, err := engine.New(engine.Config{
		StationDetection: cfg.Automation.StationDetection,
		Automation:       automationSettings(cfg.Automation),
	}, engine.Deps{
		World:     hostBridge,
		Vehicles:  hostBridge,
		Zones:     hostBridge,
		Avatars:   hostBridge,
		Drawer:    hostBridge,
		Scheduler: loop,
		Triggers:  store.triggers,
		Members:   store.members,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	eng.SetLogger(log.Component("engine"))
	if store.audit != nil {
		eng.SetAuditor(store.audit)
	}
	if influxClient != nil {
		eng.SetTelemetry(influxClient)
	}

	var apiHub *api.Hub
	if cfg.API.Enabled {
		apiHub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		go apiHub.Run(ctx)
		eng.SetHub(fanout{apiHub, hostBridge})
	} else {
		eng.SetHub(hostBridge)
	}

	hostBridge.SetHandler(eng)
	if err := hostBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting host bridge: %w", err)
	}

	if err := waitForWorld(ctx, hostBridge, cfg.World.ReadyTimeout, log); err != nil {
		return err
	}

	if err := loop.Do(ctx, func() error { return eng.Start(ctx) }); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer stopEngine(loop, eng, log)

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Engine:   eng,
			Loop:     loop,
			Hub:      apiHub,
			Checks:   checks,
			Audit:    store.audit,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Engine (releases vehicles, publishes through the bridge)
	// 3. Event loop, then the bridge outbox is flushed
	// 4. InfluxDB, MQTT, storage
	return nil
}

// storage holds the repositories of the configured backend.
type storage struct {
	db       *database.DB
	triggers trigger.Repository
	members  automation.MembershipRepository
	audit    audit.Repository // nil on the file backend
}

// openStorage opens the sqlite database or the data file directory.
func openStorage(ctx context.Context, cfg *config.Config, log *logging.Logger) (*storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		files, err := datafile.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening data directory: %w", err)
		}
		log.Info("file storage opened", "dir", files.Dir())
		return &storage{
			triggers: trigger.NewFileRepository(files),
			members:  automation.NewFileMembershipRepository(files),
		}, nil

	default:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Info("database connected", "path", cfg.Database.Path)

		if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete")

		return &storage{
			db:       db,
			triggers: trigger.NewSQLiteRepository(db.DB),
			members:  automation.NewSQLiteMembershipRepository(db.DB),
			audit:    audit.NewSQLiteRepository(db.DB),
		}, nil
	}
}

func (s *storage) close(log *logging.Logger) {
	if s.db == nil {
		return
	}
	log.Info("closing database")
	if err := s.db.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}
}

// automationSettings converts a validated automation config section.
func automationSettings(a config.AutomationConfig) automation.Settings {
	s := automation.DefaultSettings()
	s.AutomateAll = a.AutomateAll
	s.DefaultSpeed, s.DepartureSpeed, s.DefaultTrack = a.Speeds()
	s.Dwell = a.Dwell()
	s.StartDelayMin, s.StartDelayMax = a.StartDelays()
	if len(a.ConductorOutfit) > 0 {
		s.Outfit = a.ConductorOutfit
	}
	return s
}

// waitForWorld blocks until the host announces its world. A zero timeout
// waits until ctx is cancelled.
func waitForWorld(ctx context.Context, b *bridge.Bridge, timeoutSeconds int, log *logging.Logger) error {
	waitCtx := ctx
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}
	log.Info("waiting for world host")
	if err := b.WaitReady(waitCtx); err != nil {
		return fmt.Errorf("waiting for world host: %w", err)
	}
	log.Info("world host ready", "map_id", b.MapID(), "landmarks", len(b.StationLandmarks()))
	return nil
}

// stopEngine releases every automated vehicle on the loop. Membership is
// kept so the same vehicles resume on the next start.
func stopEngine(loop *scheduler.Loop, eng *engine.Engine, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("stopping engine")
	if err := loop.Do(ctx, func() error {
		eng.Stop()
		return nil
	}); err != nil {
		log.Error("error stopping engine", "error", err)
	}
}

// fanout broadcasts engine events to several hubs.
type fanout []automation.WSHub

// Broadcast implements automation.WSHub.
func (f fanout) Broadcast(channel string, payload any) {
	for _, hub := range f {
		hub.Broadcast(channel, payload)
	}
}

// getConfigPath returns the configuration file path.
// Uses RAILRUNNER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RAILRUNNER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
