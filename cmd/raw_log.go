// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/spf13/cobra"
)

var (
	rawLogInit  bool
	rawLogBytes bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded frames in human-readable format",
	Long: `Continuously decode and display receiver frames as they arrive.

Each frame is shown with a timestamp, its kind and decoded fields. Corrupt
configuration frames are reported and decoding resumes on the next byte.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogInit, "init", false, "Send the init sequence first")
	rawLogCmd.Flags().BoolVar(&rawLogBytes, "bytes", false, "Also print raw bytes as they arrive")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("rxbridge - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if rawLogInit {
		if _, err := conn.Write(rs232.InitSequence()); err != nil {
			return fmt.Errorf("send init: %w", err)
		}
	}

	buf := rs232.NewBuffer()
	decoder := rs232.NewDecoder(buf)
	chunk := make([]byte, 128)

	for {
		n, err := conn.Read(chunk)
		if err != nil {
			// a read error on a WebSocket means the bridge is gone
			if errors.Is(err, ErrConnectionClosed) {
				log.Printf("Connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}
		if rawLogBytes {
			fmt.Printf("<< %s\n", rs232.FormatBytes(chunk[:n]))
		}
		buf.Append(chunk[:n])

		for {
			f, err := decoder.Next()
			if errors.Is(err, rs232.ErrNoData) || errors.Is(err, rs232.ErrInsufficientData) {
				break
			}
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			fmt.Print(rs232.FormatFrame(f))
		}
	}
}
