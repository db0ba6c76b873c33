// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	sendInit      bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and count corrupt frames on the link",
	Long: `Track corrupt frames and stray bytes with statistics.

This command decodes the receiver traffic and detects:
  - Configuration frames with a bad terminator or length field
  - Reports whose terminator is not ETX
  - Bytes that start no known frame
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Errors are highlighted as they happen, with periodic statistics summaries at
configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	errorDetectionCmd.Flags().BoolVar(&sendInit, "init", true, "Send the init sequence so the receiver starts talking")
}

// decoded is one decoder result handed from the reader goroutine
type decoded struct {
	frame rs232.Frame
	err   error
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if sendInit {
		if _, err := conn.Write(rs232.InitSequence()); err != nil {
			return fmt.Errorf("send init: %w", err)
		}
	}

	results := make(chan decoded, 64)
	readErr := make(chan error, 1)
	go readFrames(conn, results, readErr)

	if useTUI {
		return runTUIMode(connInfo, results, readErr)
	}
	return runTextMode(connInfo, results, readErr)
}

// readFrames decodes everything arriving on conn. Incomplete frames are not
// reported; they are retried when more bytes arrive.
func readFrames(conn Connection, out chan<- decoded, readErr chan<- error) {
	buf := rs232.NewBuffer()
	decoder := rs232.NewDecoder(buf)
	chunk := make([]byte, 128)

	for {
		n, err := conn.Read(chunk)
		if err != nil {
			readErr <- err
			return
		}
		buf.Append(chunk[:n])

		for {
			f, err := decoder.Next()
			if errors.Is(err, rs232.ErrNoData) || errors.Is(err, rs232.ErrInsufficientData) {
				break
			}
			out <- decoded{frame: f, err: err}
		}
	}
}

// isError reports whether a decoder result counts as an error
func (d decoded) isError() bool {
	if d.err != nil {
		return true
	}
	switch v := d.frame.(type) {
	case *rs232.Report:
		return !v.Valid
	case rs232.Unexpected:
		return true
	}
	return false
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED, RESYNCING <<<\n\n")
}

// printFrameError prints a frame that decoded but is suspect
func printFrameError(f rs232.Frame) {
	timestamp := time.Now().Format("15:04:05.000")
	switch v := f.(type) {
	case *rs232.Report:
		fmt.Printf("[%s] \033[1;33mBAD TERMINATOR:\033[0m report %s data=%s\n\n", timestamp, v.Code, v.Data)
	case rs232.Unexpected:
		fmt.Printf("[%s] \033[1;33mUNEXPECTED BYTE:\033[0m 0x%02X\n\n", timestamp, v.Byte)
	}
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(connInfo string, results <-chan decoded, readErr <-chan error) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go func() {
		synchronized := false
		strayBefore := 0
		for {
			select {
			case d := <-results:
				if !synchronized {
					if _, stray := d.frame.(rs232.Unexpected); stray || d.err != nil {
						strayBefore++
						continue
					}
					synchronized = true
					p.Send(syncMsg{invalidBytes: strayBefore})
				}
				p.Send(frameMsg(d))
			case err := <-readErr:
				p.Send(linkErrorMsg{err: err})
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(connInfo string, results <-chan decoded, readErr <-chan error) error {
	fmt.Printf("rxbridge - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := rs232.NewStatistics()

	// ignore noise until the first well-formed frame
	synchronized := false
	strayBefore := 0

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case d := <-results:
			if !synchronized {
				if _, stray := d.frame.(rs232.Unexpected); stray || d.err != nil {
					strayBefore++
					continue
				}
				synchronized = true
				if strayBefore > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d stray frames\n\n", strayBefore)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			stats.Update(d.frame, d.err)
			switch {
			case d.err != nil:
				printDecodeError(d.err)
			case d.isError():
				printFrameError(d.frame)
			case showAll:
				fmt.Print(rs232.FormatFrame(d.frame))
			}

		case err := <-readErr:
			fmt.Print(stats.String())
			return fmt.Errorf("read: %w", err)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
