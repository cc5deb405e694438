// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vallostat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, 50*time.Millisecond, cfg.Driver.PollTimeout)
	assert.Equal(t, 3, cfg.Driver.PollRetries)
	assert.Equal(t, time.Minute, cfg.Driver.RefreshInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "vallostat", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "json", cfg.MQTT.PayloadFormat)
	assert.Equal(t, 1883, cfg.MQTT.Broker.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Influx.Enabled)
	assert.Equal(t, 19200, cfg.IHC.Baud)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB1
driver:
  poll_timeout: 80ms
  poll_retries: 5
mqtt:
  broker:
    host: broker.local
    client_id: attic
  topic_prefix: home/ventilation
  payload_format: cbor
ihc:
  ios:
    - name: porch
      module: 1
      port: 2
    - name: home
      module: 7
      port: 3
      input: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 80*time.Millisecond, cfg.Driver.PollTimeout)
	assert.Equal(t, 5, cfg.Driver.PollRetries)
	assert.Equal(t, "broker.local", cfg.MQTT.Broker.Host)
	assert.Equal(t, "attic", cfg.MQTT.Broker.ClientID)
	assert.Equal(t, "home/ventilation", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "cbor", cfg.MQTT.PayloadFormat)

	require.Len(t, cfg.IHC.IOs, 2)
	assert.Equal(t, "porch", cfg.IHC.IOs[0].Name)
	assert.Equal(t, 2, cfg.IHC.IOs[0].Port)
	assert.True(t, cfg.IHC.IOs[1].Input)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VALLOSTAT_MQTT_BROKER_HOST", "env-broker")
	t.Setenv("VALLOSTAT_DRIVER_POLL_RETRIES", "7")

	cfg, err := Load(writeConfig(t, "mqtt:\n  broker:\n    host: file-broker\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-broker", cfg.MQTT.Broker.Host)
	assert.Equal(t, 7, cfg.Driver.PollRetries)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "serial: [unterminated\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"retries", func(c *Config) { c.Driver.PollRetries = 0 }, "driver.poll_retries"},
		{"format", func(c *Config) { c.MQTT.PayloadFormat = "xml" }, "mqtt.payload_format"},
		{"prefix", func(c *Config) { c.MQTT.TopicPrefix = "" }, "mqtt.topic_prefix"},
		{"influx", func(c *Config) { c.Influx.Enabled = true; c.Influx.Bucket = "" }, "influx.url"},
		{"ihc port", func(c *Config) { c.IHC.IOs[0].Port = 9 }, "ihc.ios"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "ihc:\n  ios:\n    - {name: a, module: 1, port: 1}\n"))
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
