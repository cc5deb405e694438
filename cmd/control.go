// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/vallostat/internal/bridge"
	"github.com/Thermoquad/vallostat/internal/config"
	"github.com/Thermoquad/vallostat/internal/logging"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

const (
	reconnectMinBackoff = 1 * time.Second
	reconnectMaxBackoff = 30 * time.Second
	stateRefresh        = time.Second
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the ventilation unit",
	Long: `Control the ventilation unit via an interactive terminal UI.

The TUI joins the bus as a control panel, reads every variable once and then
follows the bus traffic. Settings are chosen from the list on the left and
their new value typed into the value field.

Shortcuts (settings list focused):
  p      toggle power
  + / -  fan speed up / down
  r      toggle humidity control
  h      toggle post-heating

Tab switches between the settings list and the value field. The connection
is reopened with exponential backoff when it is lost.

Log output goes only to the configured log file while the TUI is running.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// controlCommand is a setting change requested from the TUI
type controlCommand struct {
	setting string
	value   string
}

// busWorker owns the bus for the TUI. It runs the driver, executes setting
// changes and reopens the connection when it drops.
type busWorker struct {
	cfg      *config.Config
	logger   *zap.Logger
	port     *vallox.StreamPort
	driver   *vallox.Driver
	commands chan controlCommand
	send     func(tea.Msg)
	updated  time.Time
}

func runControl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Console output would corrupt the TUI, so only the log file is kept
	logger, err := logging.NewWithWriter(cfg.Logging, io.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Prompt once so reconnects do not need the terminal
	if cfg.WebSocket.URL != "" && cfg.WebSocket.Username != "" && os.Getenv(PasswordEnv) == "" {
		password, err := GetPassword()
		if err != nil {
			return err
		}
		_ = os.Setenv(PasswordEnv, password)
	}

	port, connInfo, err := OpenPort(cfg)
	if err != nil {
		return err
	}

	w := &busWorker{
		cfg:      cfg,
		logger:   logger.Named("control"),
		port:     port,
		commands: make(chan controlCommand, 8),
	}

	m := initialControlModel(connInfo, w.submit)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	w.send = p.Send

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx)
	}()

	_, err = p.Run()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// submit queues a command without blocking the TUI
func (w *busWorker) submit(c controlCommand) bool {
	select {
	case w.commands <- c:
		return true
	default:
		return false
	}
}

// run drives the bus until ctx is cancelled
func (w *busWorker) run(ctx context.Context) {
	defer func() { _ = w.port.Close() }()

	for {
		w.initialize(ctx)
		w.serve(ctx)
		if ctx.Err() != nil {
			return
		}

		w.logger.Warn("bus connection lost", zap.Error(w.port.Err()))
		w.send(connectionLostMsg{err: w.port.Err()})
		if !w.reconnect(ctx) {
			return
		}
	}
}

// initialize builds a driver for the current port and reads every variable
func (w *busWorker) initialize(ctx context.Context) {
	w.driver = vallox.NewDriver(w.port, driverOptions(w.cfg.Driver, w.logger.Named("vallox"))...)
	w.send(initStartedMsg{})
	err := w.driver.Init(ctx)
	if ctx.Err() != nil {
		return
	}
	w.send(initDoneMsg{err: err})
	w.publish()
}

// serve runs the driver loop and executes queued commands until the port
// closes or ctx is cancelled
func (w *busWorker) serve(ctx context.Context) {
	loop := time.NewTicker(idleInterval)
	defer loop.Stop()
	refresh := time.NewTicker(stateRefresh)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.port.Done():
			return

		case c := <-w.commands:
			err := bridge.Execute(ctx, w.driver, c.setting, c.value)
			if err != nil {
				w.logger.Warn("command failed", zap.String("setting", c.setting), zap.String("value", c.value), zap.Error(err))
			}
			w.send(commandResultMsg{command: c, err: err})
			w.publish()

		case <-loop.C:
			if err := w.driver.Loop(ctx); err != nil && ctx.Err() == nil {
				w.send(busErrorMsg{err: err})
			}
			if !w.driver.Updated().Equal(w.updated) {
				w.publish()
			}

		case <-refresh.C:
			w.publish()
		}
	}
}

// publish sends copies of the cache and counters to the TUI
func (w *busWorker) publish() {
	w.updated = w.driver.Updated()
	w.send(unitStateMsg{
		cache: copyCache(w.driver.Cache()),
		stats: w.driver.Statistics().Clone(),
	})
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if ctx was cancelled first.
func (w *busWorker) reconnect(ctx context.Context) bool {
	_ = w.port.Close()

	backoff := reconnectMinBackoff
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		port, connInfo, err := OpenPort(w.cfg)
		if err == nil {
			w.port = port
			w.logger.Info("bus reconnected", zap.String("connection", connInfo))
			w.send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		w.logger.Debug("reconnect failed", zap.Duration("backoff", backoff), zap.Error(err))

		backoff *= 2
		if backoff > reconnectMaxBackoff {
			backoff = reconnectMaxBackoff
		}
	}
}

// copyCache returns a cache holding the same field values as c
func copyCache(c *vallox.Cache) *vallox.Cache {
	out := vallox.NewCache()
	for _, f := range vallox.Fields() {
		out.Set(f, c.Get(f))
	}
	return out
}
