// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var pollCmd = &cobra.Command{
	Use:   "poll [variable...]",
	Short: "Poll variables from the mainboard",
	Long: `Poll one or more variables from mainboard 1 and print the raw and decoded values.

Variables are given by name (FAN_SPEED, T_OUTSIDE, STATUS, ...) or hex id
(0x29). Without arguments every known variable is polled.

Polls use the driver timeout and retry settings from the configuration.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	ids, err := parseVariables(args)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	port, _, err := OpenPort(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, cancel := signalContext()
	defer cancel()

	driver := vallox.NewDriver(port, driverOptions(cfg.Driver, logger)...)

	var failed int
	pollVariables(ctx, driver, ids, func(id, value byte, err error) {
		if err != nil {
			failed++
			fmt.Printf("%-18s (0x%02X) error: %v\n", vallox.FormatVariable(id), id, err)
			return
		}
		fmt.Printf("%-18s (0x%02X) = 0x%02X%s\n", vallox.FormatVariable(id), id, value, vallox.FormatValue(id, value))
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d polls failed", failed, len(ids))
	}
	return nil
}
