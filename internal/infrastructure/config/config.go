package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/rail"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config is the root configuration structure for Railrunner.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
	Automation AutomationConfig `yaml:"automation"`
}

// WorldConfig describes how the host world is reached.
type WorldConfig struct {
	// TopicPrefix is the root of every host bridge topic.
	TopicPrefix string `yaml:"topic_prefix"`
	// ReadyTimeout is how long to wait for the host's world_ready event, in seconds.
	// Zero waits forever.
	ReadyTimeout int `yaml:"ready_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// StorageConfig selects where triggers and membership are persisted.
type StorageConfig struct {
	// Backend is "sqlite" (tables in the database) or "file" (JSON data files).
	Backend string `yaml:"backend"`
	// DataDir holds the JSON files of the file backend.
	DataDir string `yaml:"data_dir"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// AutomationConfig contains the vehicle automation parameters.
type AutomationConfig struct {
	// AutomateAll automates every vehicle and disables per-vehicle toggling.
	AutomateAll bool `yaml:"automate_all"`

	DefaultSpeed          string `yaml:"default_speed"`
	DepartureSpeed        string `yaml:"departure_speed"`
	DefaultTrackSelection string `yaml:"default_track_selection"`

	// DwellSeconds is the wait at a station stop or a Zero trigger.
	DwellSeconds int `yaml:"dwell_seconds"`

	StartDelayMinSeconds int `yaml:"start_delay_min_seconds"`
	StartDelayMaxSeconds int `yaml:"start_delay_max_seconds"`

	StationDetection bool `yaml:"station_detection"`

	// ConductorOutfit overrides the operator avatar clothing when set.
	ConductorOutfit []host.OutfitItem `yaml:"conductor_outfit"`

	// TickIntervalMS is the resolution of the event loop's timers.
	TickIntervalMS int `yaml:"tick_interval_ms"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RAILRUNNER_SECTION_KEY
// For example: RAILRUNNER_DATABASE_PATH, RAILRUNNER_AUTOMATE_ALL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		World: WorldConfig{
			TopicPrefix:  "railrunner",
			ReadyTimeout: 0,
		},
		Database: DatabaseConfig{
			Path:        "./data/railrunner.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DataDir: "./data",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "railrunner",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "railrunner",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Automation: AutomationConfig{
			DefaultSpeed:          rail.FwdHi.String(),
			DepartureSpeed:        rail.FwdMed.String(),
			DefaultTrackSelection: rail.TrackLeft.String(),
			DwellSeconds:          30,
			StartDelayMinSeconds:  1,
			StartDelayMaxSeconds:  3,
			StationDetection:      true,
			TickIntervalMS:        50,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RAILRUNNER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Storage
	if v := os.Getenv("RAILRUNNER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RAILRUNNER_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("RAILRUNNER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	// MQTT
	if v := os.Getenv("RAILRUNNER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RAILRUNNER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RAILRUNNER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("RAILRUNNER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("RAILRUNNER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("RAILRUNNER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("RAILRUNNER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Automation
	if v := os.Getenv("RAILRUNNER_AUTOMATE_ALL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Automation.AutomateAll = b
		}
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.World.TopicPrefix == "" {
		errs = append(errs, "world.topic_prefix is required")
	}
	if c.World.ReadyTimeout < 0 {
		errs = append(errs, "world.ready_timeout must not be negative")
	}

	// Storage validation
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	case BackendFile:
		if c.Storage.DataDir == "" {
			errs = append(errs, "storage.data_dir is required for the file backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be %q or %q", BackendSQLite, BackendFile))
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set RAILRUNNER_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	errs = append(errs, c.Automation.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (a AutomationConfig) validate() []string {
	var errs []string
	if _, err := rail.ParseEngineSpeed(a.DefaultSpeed); err != nil {
		errs = append(errs, fmt.Sprintf("automation.default_speed: %v", err))
	}
	if _, err := rail.ParseEngineSpeed(a.DepartureSpeed); err != nil {
		errs = append(errs, fmt.Sprintf("automation.departure_speed: %v", err))
	}
	if _, err := rail.ParseTrackSelection(a.DefaultTrackSelection); err != nil {
		errs = append(errs, fmt.Sprintf("automation.default_track_selection: %v", err))
	}
	if a.DwellSeconds < 0 {
		errs = append(errs, "automation.dwell_seconds must not be negative")
	}
	if a.StartDelayMinSeconds < 0 || a.StartDelayMaxSeconds < a.StartDelayMinSeconds {
		errs = append(errs, "automation.start_delay_min_seconds must be >= 0 and <= start_delay_max_seconds")
	}
	if a.TickIntervalMS <= 0 {
		errs = append(errs, "automation.tick_interval_ms must be positive")
	}
	return errs
}

// Speeds returns the parsed running speed, departure speed and branch.
// Call only on a validated config.
func (a AutomationConfig) Speeds() (running, departure rail.EngineSpeed, track rail.TrackSelection) {
	running, _ = rail.ParseEngineSpeed(a.DefaultSpeed)
	departure, _ = rail.ParseEngineSpeed(a.DepartureSpeed)
	track, _ = rail.ParseTrackSelection(a.DefaultTrackSelection)
	return running, departure, track
}

// Dwell returns the dwell duration.
func (a AutomationConfig) Dwell() time.Duration {
	return time.Duration(a.DwellSeconds) * time.Second
}

// StartDelays returns the bounds of the staggered start delay.
func (a AutomationConfig) StartDelays() (lo, hi time.Duration) {
	return time.Duration(a.StartDelayMinSeconds) * time.Second, time.Duration(a.StartDelayMaxSeconds) * time.Second
}

// TickInterval returns the event loop timer resolution.
func (a AutomationConfig) TickInterval() time.Duration {
	return time.Duration(a.TickIntervalMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
