package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ha-monitor.
// Values come from built-in defaults, an optional YAML file and environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Watch    WatchConfig    `yaml:"watch"`
	Action   ActionConfig   `yaml:"action"`
	Logging  LoggingConfig  `yaml:"logging"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"` // seconds
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
	InitialDelay int `yaml:"initial_delay"` // seconds
	MaxDelay     int `yaml:"max_delay"`     // seconds
	// MaxAttempts bounds consecutive failed connection attempts. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
}

// WatchConfig selects the availability topic to watch.
type WatchConfig struct {
	Topic string `yaml:"topic"`
}

// ActionConfig describes the recovery command run when the topic comes online.
type ActionConfig struct {
	// Binary is the executable to run. Resolved through PATH when not absolute.
	Binary string `yaml:"binary"`

	// Args are fixed command-line arguments. Message payloads never end up here.
	Args []string `yaml:"args"`

	// Async runs each invocation on its own goroutine so the message loop
	// keeps draining broker traffic while the command runs.
	Async bool `yaml:"async"`

	// Timeout kills a hung command after this many seconds. 0 disables it.
	Timeout int `yaml:"timeout"`

	// ShutdownGrace is how long shutdown waits for in-flight commands (seconds).
	ShutdownGrace int `yaml:"shutdown_grace"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// InfluxDBConfig contains optional telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// Load builds the configuration and validates it.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, when path is non-empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HAMONITOR_SECTION_KEY
// For example: HAMONITOR_MQTT_HOST, HAMONITOR_TOPIC
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config matching a stock Home Assistant + Mosquitto install.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ha-monitor",
			},
			QoS:       0,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Watch: WatchConfig{
			Topic: "homeassistant/status",
		},
		Action: ActionConfig{
			Binary:        "wb-engine-helper",
			Args:          []string{"--start"},
			Async:         true,
			Timeout:       0,
			ShutdownGrace: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HAMONITOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// MQTT
	if v := os.Getenv("HAMONITOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HAMONITOR_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HAMONITOR_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("HAMONITOR_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("HAMONITOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HAMONITOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Watch
	if v := os.Getenv("HAMONITOR_TOPIC"); v != "" {
		cfg.Watch.Topic = v
	}

	// Action
	if v := os.Getenv("HAMONITOR_ACTION_BINARY"); v != "" {
		cfg.Action.Binary = v
	}
	if v, ok := os.LookupEnv("HAMONITOR_ACTION_ARGS"); ok {
		cfg.Action.Args = strings.Fields(v)
	}

	// Logging
	if v := os.Getenv("HAMONITOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HAMONITOR_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// InfluxDB
	if v := os.Getenv("HAMONITOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
// A failure here is the only condition that aborts startup.
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	host := c.MQTT.Broker.Host
	switch {
	case host == "":
		errs = append(errs, "mqtt.broker.host is required")
	case strings.Contains(host, "://"):
		errs = append(errs, "mqtt.broker.host must be a host name, not a URL")
	case strings.ContainsAny(host, " /"):
		errs = append(errs, "mqtt.broker.host contains invalid characters")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 1 {
		errs = append(errs, "mqtt.keep_alive must be at least 1 second")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be less than initial_delay")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}

	// Watch validation
	if c.Watch.Topic == "" {
		errs = append(errs, "watch.topic is required")
	} else if strings.ContainsAny(c.Watch.Topic, "+#") {
		errs = append(errs, "watch.topic must not contain wildcards")
	}

	// Action validation
	if strings.TrimSpace(c.Action.Binary) == "" {
		errs = append(errs, "action.binary is required")
	}
	if c.Action.Timeout < 0 {
		errs = append(errs, "action.timeout must not be negative")
	}
	if c.Action.ShutdownGrace < 0 {
		errs = append(errs, "action.shutdown_grace must not be negative")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetKeepAlive returns the MQTT keep-alive interval as a Duration.
func (c MQTTConfig) GetKeepAlive() time.Duration {
	return time.Duration(c.KeepAlive) * time.Second
}

// GetInitialDelay returns the first reconnect delay as a Duration.
func (c MQTTReconnectConfig) GetInitialDelay() time.Duration {
	return time.Duration(c.InitialDelay) * time.Second
}

// GetMaxDelay returns the reconnect delay ceiling as a Duration.
func (c MQTTReconnectConfig) GetMaxDelay() time.Duration {
	return time.Duration(c.MaxDelay) * time.Second
}

// GetTimeout returns the action timeout as a Duration (0 means none).
func (c ActionConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetShutdownGrace returns the shutdown drain period as a Duration.
func (c ActionConfig) GetShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGrace) * time.Second
}
