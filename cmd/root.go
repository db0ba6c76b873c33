// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/rxbridge/pkg/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rxbridge",
	Short: "RS-232 gateway for AV receivers",
	Long: `rxbridge - Bridges the framed RS-232C protocol of AV receivers to a REST API.

Runs the gateway, issues one-shot commands, probes the link and decodes raw
traffic for diagnosing communication problems.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a config file (--config) or RXBRIDGE_* environment
variables, e.g. RXBRIDGE_SERIAL_PORT or RXBRIDGE_HTTP_ADDR.

For WebSocket authentication, the password is read from the RXBRIDGE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (yaml, toml or json)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringP("port", "p", "/dev/ttyUSB0", "Serial port device")
	rootCmd.PersistentFlags().IntP("baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "WebSocket URL of a serial bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().String("username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "debug", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console or json)")
	rootCmd.PersistentFlags().String("log-file", "", "Also log to this file, rotated")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
