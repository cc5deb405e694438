// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/internal/bridge"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var setCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Change a unit setting",
	Long: `Change a unit setting through the panel bus.

Settings:
  ` + strings.Join(bridge.Settings(), "\n  ") + `

Boolean settings accept on/off, true/false, 1/0 or yes/no. Fan speeds are
1-8, the heating target is in °C (10-27) and service values are in months.

Flag settings (power, rh_mode, heating_mode) read the current status byte
from the mainboard first so the other flags are preserved. Writes are not
acknowledged by the unit.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: bridge.Settings(),
	RunE:      runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	setting, value := args[0], args[1]

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
	if err := bridge.Execute(ctx, driver, setting, value); err != nil {
		return fmt.Errorf("set %s: %w", setting, err)
	}

	fmt.Printf("%s set to %s\n", setting, value)
	return nil
}
