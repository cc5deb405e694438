// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vallostat/internal/config"
	"github.com/Thermoquad/vallostat/internal/logging"
)

var (
	configPath  string
	logLevel    string
	portName    string
	baudRate    int
	wsURL       string
	wsUsername  string
	noSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "vallostat",
	Short: "Vallox ventilation unit bus tool and MQTT bridge",
	Long: `Vallostat talks to Vallox ventilation units over the RS-485 panel bus.

It can monitor and validate bus traffic, poll and set variables, drive an
interactive control panel, and run as a daemon bridging the unit to MQTT,
Prometheus and InfluxDB.

Connection options (choose one):
  --port      Serial port for a direct RS-485 adapter (e.g., /dev/ttyUSB0)
  --url       WebSocket URL of a serial bridge (e.g., ws://bridge.local/vallox)

Settings are read from --config (or ./vallostat.yaml, /etc/vallostat/vallostat.yaml)
and VALLOSTAT_* environment variables. Command-line flags take precedence.

For WebSocket connections, use --username for HTTP Basic Auth. The password
is read from the VALLOSTAT_PASSWORD environment variable, or prompted.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./vallostat.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port (e.g., /dev/ttyUSB0)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (e.g., ws://bridge.local/vallox)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for WebSocket authentication")
	rootCmd.PersistentFlags().BoolVar(&noSSLVerify, "no-ssl-verify", false, "Disable SSL certificate verification (for self-signed certs)")
}

// loadConfig reads the configuration and applies any connection flags the
// user set explicitly
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.WebSocket.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.WebSocket.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.WebSocket.NoSSLVerify = noSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
}

// setup loads the configuration and builds the logger
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}
