// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/internal/config"
	"github.com/Thermoquad/vallostat/pkg/ihc"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var (
	ihcPortName string
	ihcBaudRate int
	ihcSet      []string
)

var ihcCmd = &cobra.Command{
	Use:   "ihc",
	Short: "Monitor and control an IHC controller",
	Long: `Tools for the IHC home automation controller on a second RS-485 port.

The IHC port and named points come from the ihc section of the
configuration file, or --ihc-port and --ihc-baud.`,
}

var ihcMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and print IHC packets",
	Long: `Decode every packet on the IHC bus and print it. Nothing is sent, so
the controller's DATA_READY offers go unanswered.`,
	RunE: runIHCMonitor,
}

var ihcControlCmd = &cobra.Command{
	Use:   "control",
	Short: "Act as the PC node and track output states",
	Long: `Answer the controller's DATA_READY offers as the PC node, poll the
output states every 10 seconds and print every change.

Outputs can be switched with --set module:port=on|off (repeatable); each
request is sent at the next DATA_READY.

Examples:
  vallostat ihc control --ihc-port /dev/ttyUSB1
  vallostat ihc control --ihc-port /dev/ttyUSB1 --set 1:3=on --set 2:1=off`,
	RunE: runIHCControl,
}

func init() {
	rootCmd.AddCommand(ihcCmd)
	ihcCmd.AddCommand(ihcMonitorCmd, ihcControlCmd)
	ihcCmd.PersistentFlags().StringVar(&ihcPortName, "ihc-port", "", "IHC serial port (e.g., /dev/ttyUSB1)")
	ihcCmd.PersistentFlags().IntVar(&ihcBaudRate, "ihc-baud", ihc.DefaultBaudRate, "IHC baud rate")
	ihcControlCmd.Flags().StringArrayVar(&ihcSet, "set", nil, "Switch an output: module:port=on|off")
}

// openIHC opens the IHC serial port from flags or config
func openIHC(cmd *cobra.Command, cfg *config.Config) (Connection, string, error) {
	if cmd.Flags().Changed("ihc-port") {
		cfg.IHC.Port = ihcPortName
	}
	if cmd.Flags().Changed("ihc-baud") {
		cfg.IHC.Baud = ihcBaudRate
	}
	if cfg.IHC.Port == "" {
		return nil, "", errors.New("no IHC port: set --ihc-port or ihc.port")
	}
	conn, err := OpenSerialConnection(cfg.IHC.Port, cfg.IHC.Baud)
	if err != nil {
		return nil, "", err
	}
	return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.IHC.Port, cfg.IHC.Baud), nil
}

func runIHCMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conn, connInfo, err := openIHC(cmd, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Vallostat - IHC Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := ihc.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		for i := 0; i < n; i++ {
			packet, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if packet != nil {
				fmt.Print(ihc.FormatPacket(packet))
			}
		}
	}
}

func runIHCControl(cmd *cobra.Command, args []string) error {
	specs := make([]outputSpec, 0, len(ihcSet))
	for _, s := range ihcSet {
		spec, err := parseOutputSpec(s)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	registry, err := ihc.NewRegistry(cfg.IHC.IOs)
	if err != nil {
		return err
	}
	conn, connInfo, err := openIHC(cmd, cfg)
	if err != nil {
		return err
	}
	port := vallox.NewStreamPort(conn)
	defer port.Close()

	ctx, cancel := signalContext()
	defer cancel()

	ctrl := ihc.NewController(port, ihc.WithLogger(logger.Named("ihc")))
	for _, spec := range specs {
		p, err := ihc.ChangeOutput(spec.module, spec.port, spec.on)
		if err != nil {
			return err
		}
		if err := ctrl.Queue(p); err != nil {
			return err
		}
	}

	fmt.Printf("Vallostat - IHC Control\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Named points: %d, queued commands: %d\n", len(registry.IOs()), ctrl.Pending())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	status := 0
	for ctx.Err() == nil {
		p, err := ctrl.Loop(ctx)
		switch {
		case errors.Is(err, ihc.ErrReplyTimeout):
			fmt.Printf("[%s] no OUTP_STATE reply\n", time.Now().Format("15:04:05.000"))
		case err != nil:
			if ctx.Err() != nil {
				break
			}
			return err
		}

		if s := ctrl.Status(); s != status {
			status = s
			fmt.Printf("[%s] link %s\n", time.Now().Format("15:04:05.000"), linkStatus(s))
		}

		if p != nil && p.Type() == ihc.CmdOutpState {
			printOutputs(registry, p)
		}

		select {
		case <-ctx.Done():
		case <-port.Done():
			return fmt.Errorf("connection lost: %w", port.Err())
		case <-time.After(idleInterval):
		}
	}

	stats := ctrl.Stats()
	fmt.Printf("\n--- IHC statistics ---\n")
	fmt.Printf("Packets: %d (decode errors %d)\n", stats.Packets, stats.DecodeErrors)
	fmt.Printf("DATA_READY: %d, sent: %d\n", stats.DataReady, stats.Sent)
	fmt.Printf("Polls: %d, replies: %d, timeouts: %d\n", stats.Polls, stats.Replies, stats.ReplyTimeouts)
	return nil
}

func linkStatus(s int) string {
	if s > 0 {
		return "up"
	}
	return "stale"
}

// printOutputs prints the outputs in an OUTP_STATE reply. Named points are
// printed when they change, otherwise the raw active list is printed.
func printOutputs(registry *ihc.Registry, p *ihc.Packet) {
	ts := time.Now().Format("15:04:05.000")
	if len(registry.IOs()) == 0 {
		fmt.Printf("[%s] outputs %s\n", ts, ihc.FormatOutputs(p.Data()))
		return
	}
	_, changed := registry.UpdateStates(p.Data())
	for _, io := range changed {
		fmt.Printf("[%s] %-16s %d.%d %s\n", ts, io.Name(), io.Module(), io.Port(), onOffString(io.State()))
	}
}

func onOffString(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
