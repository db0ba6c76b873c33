// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by requesting the receiver configuration",
	Long: `Send the init sequence and wait for a configuration frame until timeout.

Bytes that do not form a configuration frame are skipped. The init sequence is
resent every second until the receiver answers.

Exit codes:
  0 - Configuration received before timeout
  1 - Timeout reached without a configuration
  2 - Connection error

Useful for checking cabling and the serial bridge before running the gateway.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for the receiver")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("rxbridge - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for configuration frame...\n\n")

	configChan := make(chan *rs232.ConfigFrame, 1)
	errChan := make(chan error, 1)

	go func() {
		buf := rs232.NewBuffer()
		decoder := rs232.NewDecoder(buf)
		chunk := make([]byte, 128)
		skipped := 0
		lastInit := time.Time{}

		for {
			if time.Since(lastInit) >= time.Second {
				if _, err := conn.Write(rs232.InitSequence()); err != nil {
					errChan <- err
					return
				}
				lastInit = time.Now()
			}

			n, err := conn.Read(chunk)
			if err != nil {
				errChan <- err
				return
			}
			buf.Append(chunk[:n])

			for {
				f, err := decoder.Next()
				if errors.Is(err, rs232.ErrNoData) || errors.Is(err, rs232.ErrInsufficientData) {
					break
				}
				if err != nil {
					skipped++
					continue
				}
				if c, ok := f.(*rs232.ConfigFrame); ok {
					if skipped > 0 {
						fmt.Printf("(skipped %d frames before configuration)\n", skipped)
					}
					configChan <- c
					return
				}
				skipped++
			}
		}
	}()

	select {
	case c := <-configChan:
		fmt.Printf("SUCCESS: Received configuration\n")
		fmt.Printf("  Model: %s\n", c.Model)
		fmt.Printf("  Software: %s\n", c.Version)
		fmt.Printf("  State: %s\n", c.Readiness)
		fmt.Printf("  Payload: %d bytes\n", len(c.Payload))
		if c.CannotWake {
			fmt.Printf("  Warning: RS-232 cannot power on this receiver\n")
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No configuration received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
