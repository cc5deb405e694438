// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display bus frames in human-readable format",
	Long: `Continuously decode and display Vallox bus frames as they arrive.

Every accepted frame is printed with a timestamp, sender and receiver, the
variable name and the decoded value. Poll requests are shown as POLL lines.
Nothing is written to the bus.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print raw frame bytes")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	port, connInfo, err := OpenPort(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("Vallostat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	reader := vallox.NewReader(port, vallox.NewStatistics())

	for {
		f, ok, err := reader.Next()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if ok {
			line := vallox.FormatFrame(f, time.Now())
			if rawLogHex {
				line = fmt.Sprintf("%s  [%s]\n", line[:len(line)-1], vallox.FormatHex(f))
			}
			fmt.Print(line)
			continue
		}

		select {
		case <-port.Done():
			if err := port.Err(); err != nil && err != ErrConnectionClosed {
				return fmt.Errorf("connection lost: %w", err)
			}
			fmt.Printf("Connection closed\n")
			return nil
		case <-time.After(idleInterval):
		}
	}
}
