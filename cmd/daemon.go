// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vallostat/internal/bridge"
	"github.com/Thermoquad/vallostat/internal/config"
	"github.com/Thermoquad/vallostat/internal/influx"
	"github.com/Thermoquad/vallostat/internal/metrics"
	"github.com/Thermoquad/vallostat/internal/mqtt"
	"github.com/Thermoquad/vallostat/pkg/ihc"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

const shutdownTimeout = 5 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Bridge the unit to MQTT, Prometheus and InfluxDB",
	Long: `Run the unit bridge until interrupted.

The daemon owns the bus: it initializes the driver, decodes all traffic into
the state cache and publishes the state as a retained message on
<prefix>/state whenever it changes. Settings are changed by publishing to
<prefix>/command/<setting>; the outcome is published on
<prefix>/command/<setting>/result. <prefix>/status carries "online", or
"offline" via the broker's last will.

Optional components (see the configuration file):
  metrics   Prometheus metrics on metrics.addr (default :9110/metrics)
  influx    state points written to InfluxDB v2
  ihc       an IHC controller on a second RS-485 port, mirrored to
            <prefix>/ihc/<name> and switched via <prefix>/ihc/<name>/set

The daemon exits with an error if the bus connection is lost, so it can be
restarted by its supervisor.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

// daemon holds the running components so they can be shut down in order
type daemon struct {
	cfg     *config.Config
	logger  *zap.Logger
	mqtt    *mqtt.Client
	influx  *influx.Client
	metrics *metrics.BusMetrics
	server  *http.Server
	closers []func()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	d := &daemon{cfg: cfg, logger: logger}
	defer d.shutdown()

	return d.run(ctx)
}

func (d *daemon) run(ctx context.Context) error {
	port, connInfo, err := OpenPort(d.cfg)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func() { _ = port.Close() })
	d.logger.Info("bus connected", zap.String("connection", connInfo))

	d.mqtt, err = mqtt.Connect(d.cfg.MQTT, d.logger)
	if err != nil {
		return err
	}
	d.logger.Info("mqtt connected",
		zap.String("broker", fmt.Sprintf("%s:%d", d.cfg.MQTT.Broker.Host, d.cfg.MQTT.Broker.Port)),
		zap.String("prefix", d.mqtt.Topics().Prefix()),
	)

	serverErr := make(chan error, 1)
	if d.cfg.Metrics.Enable {
		d.startMetrics(serverErr)
	}
	d.connectInflux()

	driver := vallox.NewDriver(port, driverOptions(d.cfg.Driver, d.logger.Named("vallox"))...)
	opts := []bridge.Option{
		bridge.WithLogger(d.logger.Named("bridge")),
		bridge.WithMetrics(d.metrics),
		bridge.WithPayloadFormat(d.cfg.MQTT.PayloadFormat),
		bridge.WithPublishInterval(d.cfg.MQTT.PublishInterval),
		bridge.WithCommandRate(d.cfg.MQTT.CommandRate, d.cfg.MQTT.CommandBurst),
		bridge.WithQoS(byte(d.cfg.MQTT.QoS)),
	}
	if d.influx != nil {
		opts = append(opts, bridge.WithStateWriter(d.influx))
	}
	unit := bridge.New(driver, d.mqtt, d.mqtt.Topics(), opts...)
	if err := unit.Subscribe(); err != nil {
		return err
	}
	d.mqtt.SetOnConnect(unit.Republish)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	unitErr := make(chan error, 1)
	go func() { unitErr <- unit.Run(runCtx) }()

	ihcErr := make(chan error, 1)
	var ihcDone <-chan struct{}
	if d.cfg.IHC.Port != "" {
		ihcPort, err := d.startIHC(runCtx, ihcErr)
		if err != nil {
			return err
		}
		ihcDone = ihcPort.Done()
	}

	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
		stop()
		<-unitErr
		return nil
	case err := <-unitErr:
		return err
	case err := <-ihcErr:
		return fmt.Errorf("ihc: %w", err)
	case <-port.Done():
		return fmt.Errorf("bus connection lost: %w", port.Err())
	case <-ihcDone:
		return errors.New("ihc connection lost")
	case err := <-serverErr:
		return fmt.Errorf("metrics server: %w", err)
	}
}

// startMetrics serves the Prometheus registry and a broker health check
func (d *daemon) startMetrics(errc chan<- error) {
	reg := metrics.NewRegistry()
	d.metrics = metrics.NewBusMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle(d.cfg.Metrics.Path, metrics.Handler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.mqtt.HealthCheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	d.server = &http.Server{
		Addr:              d.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	d.logger.Info("metrics listening", zap.String("addr", d.cfg.Metrics.Addr), zap.String("path", d.cfg.Metrics.Path))
}

// connectInflux sets up the InfluxDB writer. Failure is logged and the daemon runs without it.
func (d *daemon) connectInflux() {
	if !d.cfg.Influx.Enabled {
		return
	}
	client, err := influx.Connect(d.cfg.Influx)
	if err != nil {
		d.logger.Warn("influxdb unavailable, continuing without it", zap.Error(err))
		return
	}
	client.SetOnError(func(err error) {
		d.logger.Warn("influxdb write failed", zap.Error(err))
	})
	d.influx = client
	d.logger.Info("influxdb connected", zap.String("url", d.cfg.Influx.URL), zap.String("bucket", d.cfg.Influx.Bucket))
}

// startIHC opens the IHC port and runs its bridge until ctx is cancelled
func (d *daemon) startIHC(ctx context.Context, errc chan<- error) (*vallox.StreamPort, error) {
	registry, err := ihc.NewRegistry(d.cfg.IHC.IOs)
	if err != nil {
		return nil, err
	}
	conn, err := OpenSerialConnection(d.cfg.IHC.Port, d.cfg.IHC.Baud)
	if err != nil {
		return nil, err
	}
	port := vallox.NewStreamPort(conn)
	d.closers = append(d.closers, func() { _ = port.Close() })

	logger := d.logger.Named("ihc")
	ctrl := ihc.NewController(port, ihc.WithLogger(logger))

	var writer bridge.IOWriter
	if d.influx != nil {
		writer = d.influx
	}
	ib := bridge.NewIHC(ctrl, registry, d.mqtt, d.mqtt.Topics(), logger, d.metrics, writer)
	if err := ib.Subscribe(); err != nil {
		return nil, err
	}

	go func() {
		if err := ib.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()
	d.logger.Info("ihc started", zap.String("port", d.cfg.IHC.Port), zap.Int("points", len(registry.IOs())))
	return port, nil
}

// shutdown stops components in reverse dependency order
func (d *daemon) shutdown() {
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Warn("metrics server shutdown", zap.Error(err))
		}
		cancel()
	}
	if d.mqtt != nil {
		_ = d.mqtt.Close()
	}
	if d.influx != nil {
		_ = d.influx.Close()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
