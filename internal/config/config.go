// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads vallostat settings from an optional YAML file,
// VALLOSTAT_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Thermoquad/vallostat/pkg/ihc"
)

// EnvPrefix is the prefix for environment overrides, e.g. VALLOSTAT_MQTT_BROKER_HOST
const EnvPrefix = "VALLOSTAT"

// SerialConfig selects the RS-485 adapter
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// WebSocketConfig selects a websocket serial bridge
type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
}

// DriverConfig tunes the poll/reply matcher
type DriverConfig struct {
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	PollRetries     int           `mapstructure:"poll_retries"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// LumberjackConfig configures the rotating log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets level, encoder and optional file sink
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MQTTBrokerConfig contains MQTT broker connection details
type MQTTBrokerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	TLS      bool   `mapstructure:"tls"`
	ClientID string `mapstructure:"client_id"`
}

// MQTTAuthConfig contains MQTT credentials
type MQTTAuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MQTTReconnectConfig contains reconnect delays in seconds
type MQTTReconnectConfig struct {
	InitialDelay int `mapstructure:"initial_delay"`
	MaxDelay     int `mapstructure:"max_delay"`
}

// MQTTConfig configures the daemon's broker link
type MQTTConfig struct {
	Broker          MQTTBrokerConfig    `mapstructure:"broker"`
	Auth            MQTTAuthConfig      `mapstructure:"auth"`
	QoS             int                 `mapstructure:"qos"`
	Reconnect       MQTTReconnectConfig `mapstructure:"reconnect"`
	TopicPrefix     string              `mapstructure:"topic_prefix"`
	PayloadFormat   string              `mapstructure:"payload_format"`
	PublishInterval time.Duration       `mapstructure:"publish_interval"`
	CommandRate     float64             `mapstructure:"command_rate"`
	CommandBurst    int                 `mapstructure:"command_burst"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

// InfluxConfig configures the optional InfluxDB writer
type InfluxConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	Org           string `mapstructure:"org"`
	Bucket        string `mapstructure:"bucket"`
	BatchSize     int    `mapstructure:"batch_size"`
	FlushInterval int    `mapstructure:"flush_interval"` // seconds
	Device        string `mapstructure:"device"`
}

// IHCConfig configures the IHC link and its named points
type IHCConfig struct {
	Port string         `mapstructure:"port"`
	Baud int            `mapstructure:"baud"`
	IOs  []ihc.IOConfig `mapstructure:"ios"`
}

// Config is the top-level configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Driver    DriverConfig    `mapstructure:"driver"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Influx    InfluxConfig    `mapstructure:"influx"`
	IHC       IHCConfig       `mapstructure:"ihc"`
}

// Load reads configuration from path (YAML/TOML/JSON) and VALLOSTAT_* variables.
// If path is empty, ./vallostat.yaml and /etc/vallostat/vallostat.yaml are tried;
// a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vallostat")
		v.SetConfigName("vallostat")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 9600)

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "")
	v.SetDefault("websocket.no_ssl_verify", false)

	v.SetDefault("driver.poll_timeout", "50ms")
	v.SetDefault("driver.poll_retries", 3)
	v.SetDefault("driver.refresh_interval", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.max_size", 10)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age", 28)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("mqtt.broker.host", "localhost")
	v.SetDefault("mqtt.broker.port", 1883)
	v.SetDefault("mqtt.broker.tls", false)
	v.SetDefault("mqtt.broker.client_id", "vallostat")
	v.SetDefault("mqtt.auth.username", "")
	v.SetDefault("mqtt.auth.password", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.reconnect.initial_delay", 1)
	v.SetDefault("mqtt.reconnect.max_delay", 60)
	v.SetDefault("mqtt.topic_prefix", "vallostat")
	v.SetDefault("mqtt.payload_format", "json")
	v.SetDefault("mqtt.publish_interval", "5m")
	v.SetDefault("mqtt.command_rate", 2.0)
	v.SetDefault("mqtt.command_burst", 4)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.addr", ":9110")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "vallostat")
	v.SetDefault("influx.batch_size", 100)
	v.SetDefault("influx.flush_interval", 10)
	v.SetDefault("influx.device", "vallox")

	v.SetDefault("ihc.port", "")
	v.SetDefault("ihc.baud", ihc.DefaultBaudRate)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []string

	if c.Serial.Baud <= 0 {
		errs = append(errs, "serial.baud must be positive")
	}
	if c.Driver.PollRetries < 1 {
		errs = append(errs, "driver.poll_retries must be at least 1")
	}
	if c.Driver.PollTimeout <= 0 {
		errs = append(errs, "driver.poll_timeout must be positive")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}
	switch strings.ToLower(c.MQTT.PayloadFormat) {
	case "json", "cbor":
	default:
		errs = append(errs, "mqtt.payload_format must be json or cbor")
	}
	if c.MQTT.CommandRate <= 0 {
		errs = append(errs, "mqtt.command_rate must be positive")
	}
	if c.Influx.Enabled && (c.Influx.URL == "" || c.Influx.Bucket == "") {
		errs = append(errs, "influx.url and influx.bucket are required when influx is enabled")
	}
	if _, err := ihc.NewRegistry(c.IHC.IOs); err != nil {
		errs = append(errs, "ihc.ios: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
