// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var (
	scanTimeout int
	scanAll     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find out which variables the mainboard answers",
	Long: `Poll variables on mainboard 1 and report which ones reply.

Modes:
  Known (default): Poll the twelve variables vallostat decodes.
  All (--all):     Poll every id from 0x01 to 0xFF. Unknown ids that answer
                   are printed raw; this takes a while on a 9600 baud bus.

Each id is polled once. Broadcast traffic seen during the scan is decoded
but not reported.

Examples:
  # Check a new installation
  vallostat scan --port /dev/ttyUSB0

  # Survey an unfamiliar mainboard firmware
  vallostat scan --port /dev/ttyUSB0 --all --timeout 200

Exit codes:
  0 - At least one variable answered
  1 - Nothing answered
  2 - Connection error`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 100, "Reply timeout per variable in milliseconds")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Poll every variable id, not just the known ones")
}

// scanIDs returns the ids a scan polls
func scanIDs(all bool) []byte {
	if !all {
		return vallox.KnownVariables
	}
	ids := make([]byte, 0, 0xFF)
	for id := 1; id <= 0xFF; id++ {
		ids = append(ids, byte(id))
	}
	return ids
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	port, connInfo, err := OpenPort(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer port.Close()

	ctx, cancel := signalContext()
	defer cancel()

	driver := vallox.NewDriver(port,
		vallox.WithLogger(logger),
		vallox.WithPollTimeout(time.Duration(scanTimeout)*time.Millisecond),
		vallox.WithPollRetries(1),
	)

	ids := scanIDs(scanAll)
	mode := "known"
	if scanAll {
		mode = "all"
	}

	fmt.Printf("Vallostat - Variable Scan\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Mode: %s (%d ids)\n", mode, len(ids))
	fmt.Printf("Timeout: %d ms\n\n", scanTimeout)

	answered := pollVariables(ctx, driver, ids, func(id, value byte, err error) {
		if err != nil {
			if !scanAll {
				fmt.Printf("  0x%02X %-18s no reply\n", id, vallox.FormatVariable(id))
			}
			return
		}
		fmt.Printf("  0x%02X %-18s 0x%02X%s\n", id, vallox.FormatVariable(id), value, vallox.FormatValue(id, value))
	})

	fmt.Printf("\n--- Scan summary ---\n")
	fmt.Printf("Variables answered: %d of %d\n", answered, len(ids))
	if stats := driver.Statistics(); stats.Errors() > 0 {
		fmt.Printf("Bus errors during scan: %d\n", stats.Errors())
	}

	if answered == 0 {
		fmt.Printf("No replies. Check wiring, baud rate and that the unit is powered.\n")
		os.Exit(1)
	}
	return nil
}
