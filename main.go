// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Vallostat - Vallox RS-485 Bus Tool
//
// A CLI for monitoring, polling and controlling Vallox ventilation units
// on their RS-485 control bus, and for bridging them to MQTT.

package main

import (
	"os"

	"github.com/Thermoquad/vallostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
