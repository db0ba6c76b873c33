// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/Thermoquad/rxbridge/pkg/logging"
	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/spf13/cobra"
)

var issueTimeout time.Duration

var issueCmd = &cobra.Command{
	Use:   "issue <payload> [code]",
	Short: "Send one command and print the matching report",
	Long: `Establish communication, send a single command and exit.

The payload is 3 bytes for an operation command or 4 bytes for a system
command. When a report code is given, the command waits for the first report
with that code and prints it as JSON; "null" means the receiver never answered.

Examples:
  rxbridge issue E1D 20      power on, wait for the power report
  rxbridge issue 0010        request a system parameter, do not wait`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runIssue,
}

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.Flags().DurationVar(&issueTimeout, "timeout", 15*time.Second, "Give up after this long")
}

func runIssue(cmd *cobra.Command, args []string) error {
	payload := []byte(args[0])
	if _, err := rs232.ClassifyCommand(payload); err != nil {
		return err
	}
	code := ""
	if len(args) > 1 {
		code = args[1]
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	log := logging.NewWithWriter(cfg.Logging, os.Stderr)
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), issueTimeout)
	defer cancel()

	ctrl := controller.New(conn, controller.Options{
		Logger:      log,
		PortName:    connInfo,
		IdleCycles:  cfg.Controller.IdleCycles,
		InitBackoff: cfg.Controller.InitBackoff,
	})
	go func() { _ = ctrl.Run(ctx) }()

	if err := waitReady(ctx, ctrl); err != nil {
		return fmt.Errorf("receiver did not respond on %s: %w", connInfo, err)
	}

	// fire-and-forget completes once the frame is written
	report, err := ctrl.Enqueue(payload, code).Wait(ctx)
	if err != nil {
		return err
	}
	if code == "" {
		fmt.Println("Command sent")
		return nil
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// waitReady blocks until the controller has established communication
func waitReady(ctx context.Context, ctrl *controller.Controller) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !ctrl.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ctrl.Stopped():
			return errors.New("controller stopped")
		case <-ticker.C:
		}
	}
	return nil
}
