// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track frame errors, malformed data, and anomalous values with statistics.

This command listens to the bus without transmitting and detects:
  - Checksum failures and unrecognized address pairs
  - Unknown variables
  - Anomalous values (invalid fan speed codes, RH below the sensor floor,
    heating targets outside the table, CO2 mode in the status byte)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Errors before the first valid frame are treated as synchronization and only
counted as skipped bytes.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	port, connInfo, err := OpenPort(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	if useTUI {
		return runTUIMode(port, connInfo)
	}
	return runTextMode(port, connInfo)
}

// busEvent is one result of passive bus decoding
type busEvent struct {
	frame      *vallox.Frame
	validation []vallox.ValidationError
	errs       []string
	synced     bool
	skipped    uint64
	stats      *vallox.Statistics
}

// watchBus decodes frames from port until the port closes or done is closed.
// Drop counters that grow before the first accepted frame are not reported.
func watchBus(port busPort, done <-chan struct{}, emit func(busEvent)) error {
	stats := vallox.NewStatistics()
	reader := vallox.NewReader(port, stats)
	synchronized := false

	for {
		before := *stats
		f, ok, err := reader.Next()
		if err != nil {
			return err
		}

		var ev busEvent
		if synchronized {
			ev.errs = dropErrors(&before, stats)
		}
		if ok {
			if !synchronized {
				synchronized = true
				ev.synced = true
				ev.skipped = stats.ResyncBytes
			}
			frame := f
			ev.frame = &frame
			ev.validation = vallox.ValidateFrame(f)
		}
		if ev.frame != nil || len(ev.errs) > 0 {
			ev.stats = stats.Clone()
			emit(ev)
			continue
		}

		select {
		case <-done:
			return nil
		case <-port.Done():
			return port.Err()
		case <-time.After(idleInterval):
		}
	}
}

// dropErrors describes the frames the reader dropped between two snapshots
func dropErrors(before, after *vallox.Statistics) []string {
	var errs []string
	if d := after.ChecksumErrors - before.ChecksumErrors; d > 0 {
		errs = append(errs, fmt.Sprintf("checksum mismatch (%d frame(s) dropped)", d))
	}
	if d := after.AddressRejects - before.AddressRejects; d > 0 {
		errs = append(errs, fmt.Sprintf("unrecognized address pair (%d frame(s) dropped)", d))
	}
	if d := after.DecodeErrors - before.DecodeErrors; d > 0 {
		errs = append(errs, fmt.Sprintf("decode error (%d frame(s) dropped)", d))
	}
	return errs
}

// printDecodeError prints a dropped frame in highlighted format
func printDecodeError(msg string) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %s\n", timestamp, msg)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(f vallox.Frame, errors []vallox.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X) [%s]\n",
		timestamp, vallox.FormatVariable(f.Variable), f.Variable, vallox.FormatHex(f))
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")
	fmt.Printf("  Route: %s -> %s\n", vallox.FormatAddress(f.Sender), vallox.FormatAddress(f.Receiver))

	for i, err := range errors {
		switch err.Type {
		case vallox.AnomalyUnknownVariable:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case vallox.AnomalyInvalidRh:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if v, ok := err.Details["value"].(byte); ok {
				fmt.Printf("    raw=%d\n", v)
			}

		case vallox.AnomalyUnsupportedFlag:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if v, ok := err.Details["value"].(byte); ok {
				fmt.Printf("    flags: %s\n", vallox.FormatStatus(v))
			}

		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> VALUE REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(port *vallox.StreamPort, connInfo string) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	done := make(chan struct{})
	defer close(done)

	go func() {
		err := watchBus(port, done, func(ev busEvent) {
			p.Send(busEventMsg(ev))
		})
		p.Send(busClosedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(port *vallox.StreamPort, connInfo string) error {
	fmt.Printf("Vallostat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	events := make(chan busEvent, 64)
	closed := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		closed <- watchBus(port, done, func(ev busEvent) {
			events <- ev
		})
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	var stats *vallox.Statistics
	for {
		select {
		case ev := <-events:
			stats = ev.stats

			if ev.synced {
				if ev.skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", ev.skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			for _, msg := range ev.errs {
				printDecodeError(msg)
			}
			if ev.frame == nil {
				continue
			}
			if len(ev.validation) > 0 {
				printValidationErrors(*ev.frame, ev.validation)
			} else if showAll {
				fmt.Print(vallox.FormatFrame(*ev.frame, time.Now()))
			}

		case err := <-closed:
			if stats != nil {
				fmt.Println()
				fmt.Print(stats.String())
			}
			if err != nil && err != ErrConnectionClosed {
				return fmt.Errorf("connection lost: %w", err)
			}
			return nil

		case <-statsTicker.C:
			if stats != nil {
				fmt.Println()
				fmt.Print(stats.String())
				fmt.Println()
			}
		}
	}
}
