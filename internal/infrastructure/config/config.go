package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when ATTRCYCLE_CONFIG is unset.
const DefaultPath = "configs/config.yaml"

// maxCycleValues is the largest value table a cycler may have; the
// persisted record holds the index in one byte.
const maxCycleValues = 255

// Config is the root configuration structure for attrcycled.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Settings SettingsConfig `yaml:"settings"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	History  HistoryConfig  `yaml:"history"`
	Cyclers  []CyclerConfig `yaml:"cyclers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SettingsConfig selects where cycler state is persisted.
type SettingsConfig struct {
	// Backend is "sqlite", "redis" or "memory".
	Backend string `yaml:"backend"`

	// Prefix is the key prefix; records are stored as "<prefix>/<id>".
	Prefix string `yaml:"prefix"`
}

// RedisConfig contains Redis connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is the root of every topic attrcycled uses.
	TopicPrefix string `yaml:"topic_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for cycle events.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HistoryConfig controls the SQLite cycle event history.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Buffer is the number of events queued for the writer before new
	// events are dropped.
	Buffer int `yaml:"buffer"`

	// RetentionDays removes older events at startup. Zero keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// NeedsDatabase reports whether the SQLite database must be opened.
func (c *Config) NeedsDatabase() bool {
	return c.Settings.Backend == "sqlite" || c.History.Enabled
}

// CyclerConfig describes one cycler instance.
type CyclerConfig struct {
	// ID names the instance and forms its storage key.
	ID string `yaml:"id"`

	// Device is the target device name. Empty means no device is attached.
	Device string `yaml:"device"`

	// Attribute is the device attribute the values are written to.
	Attribute string `yaml:"attribute"`

	Values       []int32 `yaml:"values"`
	SaveDelayMS  int     `yaml:"save_delay_ms"`
	ApplyDelayMS int     `yaml:"apply_delay_ms"`
	Persistent   bool    `yaml:"persistent"`
}

// SaveDelay returns the debounce delay before state is saved.
func (c CyclerConfig) SaveDelay() time.Duration {
	return time.Duration(c.SaveDelayMS) * time.Millisecond
}

// ApplyDelay returns the delay between restore and the first attribute write.
func (c CyclerConfig) ApplyDelay() time.Duration {
	return time.Duration(c.ApplyDelayMS) * time.Millisecond
}

// PathFromEnv returns ATTRCYCLE_CONFIG or DefaultPath.
func PathFromEnv() string {
	if v := os.Getenv("ATTRCYCLE_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern ATTRCYCLE_SECTION_KEY,
// for example ATTRCYCLE_DATABASE_PATH or ATTRCYCLE_MQTT_HOST.
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

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/attrcycle.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Settings: SettingsConfig{
			Backend: "sqlite",
			Prefix:  "attr_cycle",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "attrcycled",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "attrcycle",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		History: HistoryConfig{
			Enabled:       true,
			Buffer:        256,
			RetentionDays: 30,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTRCYCLE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ATTRCYCLE_SETTINGS_BACKEND"); v != "" {
		cfg.Settings.Backend = v
	}
	if v := os.Getenv("ATTRCYCLE_SETTINGS_PREFIX"); v != "" {
		cfg.Settings.Prefix = v
	}

	if v := os.Getenv("ATTRCYCLE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ATTRCYCLE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ATTRCYCLE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	if v := os.Getenv("ATTRCYCLE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ATTRCYCLE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ATTRCYCLE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("ATTRCYCLE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("ATTRCYCLE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("ATTRCYCLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.NeedsDatabase() && c.Database.Path == "" {
		errs = append(errs, "database.path is required for the sqlite backend and history")
	}
	switch c.Settings.Backend {
	case "sqlite":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis backend")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("settings.backend %q must be sqlite, redis or memory", c.Settings.Backend))
	}
	if c.Settings.Prefix == "" || strings.HasSuffix(c.Settings.Prefix, "/") {
		errs = append(errs, "settings.prefix must be non-empty without a trailing /")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.History.Enabled && c.History.Buffer < 1 {
		errs = append(errs, "history.buffer must be at least 1")
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}

	errs = append(errs, c.validateCyclers()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateCyclers() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Cyclers))

	for i, cy := range c.Cyclers {
		where := fmt.Sprintf("cyclers[%d]", i)
		if cy.ID != "" {
			where = fmt.Sprintf("cyclers[%s]", cy.ID)
		}

		switch {
		case cy.ID == "":
			errs = append(errs, where+".id is required")
		case strings.ContainsAny(cy.ID, "/+#"):
			errs = append(errs, where+".id must not contain '/', '+' or '#'")
		case seen[cy.ID]:
			errs = append(errs, where+".id is duplicated")
		}
		seen[cy.ID] = true

		if cy.Attribute == "" {
			errs = append(errs, where+".attribute is required")
		}
		if len(cy.Values) == 0 {
			errs = append(errs, where+".values must not be empty")
		} else if len(cy.Values) > maxCycleValues {
			errs = append(errs, fmt.Sprintf("%s.values has %d entries, maximum is %d", where, len(cy.Values), maxCycleValues))
		}
		if cy.SaveDelayMS < 0 || cy.ApplyDelayMS < 0 {
			errs = append(errs, where+" delays must not be negative")
		}
	}
	return errs
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
