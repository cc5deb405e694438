// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

var (
	pingTimeout  int
	pingCount    int
	pingVariable string
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the link by polling the mainboard",
	Long: `Poll a variable (STATUS by default) on mainboard 1 and wait for the reply.

Each poll is sent once, without retries, so every lost reply counts. This
verifies:
  - Frames reach the bus (adapter TX and wiring)
  - The mainboard answers at the configured baud rate
  - Replies come back through the adapter or WebSocket bridge

Exit codes:
  0 - All polls answered
  1 - One or more polls failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 1, "Timeout in seconds for each poll")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of polls to send")
	pingCmd.Flags().StringVar(&pingVariable, "variable", "STATUS", "Variable to poll (name or hex id)")
}

func runPing(cmd *cobra.Command, args []string) error {
	variable, err := vallox.ParseVariable(pingVariable)
	if err != nil {
		return err
	}
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
		vallox.WithPollTimeout(time.Duration(pingTimeout)*time.Second),
		vallox.WithPollRetries(1),
	)

	fmt.Printf("Vallostat - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Variable: %s (0x%02X)\n", vallox.FormatVariable(variable), variable)
	fmt.Printf("Timeout: %d seconds per poll\n", pingTimeout)
	fmt.Printf("Count: %d polls\n\n", pingCount)

	successCount := 0
	failCount := 0
	var total time.Duration

	for i := 1; i <= pingCount && ctx.Err() == nil; i++ {
		fmt.Printf("Poll %d/%d: ", i, pingCount)

		start := time.Now()
		value, err := driver.PollVariable(ctx, variable)
		rtt := time.Since(start)

		switch {
		case err == nil:
			fmt.Printf("reply 0x%02X%s, rtt=%v\n", value, vallox.FormatValue(variable, value), rtt.Round(time.Millisecond))
			successCount++
			total += rtt
		case errors.Is(err, vallox.ErrPollTimeout):
			fmt.Printf("TIMEOUT (no reply in %ds)\n", pingTimeout)
			failCount++
		default:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	sent := successCount + failCount
	fmt.Printf("\n--- Ping statistics ---\n")
	if sent > 0 {
		fmt.Printf("%d polls sent, %d replies received, %.0f%% loss\n",
			sent, successCount, float64(failCount)/float64(sent)*100)
	}
	if successCount > 0 {
		fmt.Printf("average rtt=%v\n", (total / time.Duration(successCount)).Round(time.Millisecond))
	}

	if failCount > 0 || sent == 0 {
		os.Exit(1)
	}
	return nil
}
