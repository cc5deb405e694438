// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read and print the unit state",
	Long: `Poll every known variable and print the unit state.

Formats:
  text   aligned table (default)
  json   indented JSON, the same document the daemon publishes
  yaml   YAML
  cbor   binary CBOR written to stdout

Variables that do not answer are shown as unknown and reported on stderr.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", vallox.FormatText, "Output format: text, json, yaml, cbor")
}

// writeStatus renders the cache in the requested format
func writeStatus(w io.Writer, c *vallox.Cache, format string) error {
	if format == vallox.FormatText {
		_, err := io.WriteString(w, vallox.FormatState(c))
		return err
	}
	data, err := vallox.EncodeState(c.Snapshot(), format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if format != vallox.FormatCBOR && (len(data) == 0 || data[len(data)-1] != '\n') {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	switch statusFormat {
	case vallox.FormatText, vallox.FormatJSON, vallox.FormatYAML, vallox.FormatCBOR:
	default:
		return fmt.Errorf("unsupported format %q", statusFormat)
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
	if err := driver.Init(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	return writeStatus(os.Stdout, driver.Cache(), statusFormat)
}
