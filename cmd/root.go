// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/internal/config"
)

var (
	configPath string

	// Active configuration, resolved before every command runs
	cfg = config.Default()

	logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
)

// Flag values. They override the config file only when set explicitly.
var (
	flagDevice        string
	flagBackend       string
	flagAdapter       string
	flagResources     string
	flagPollInterval  time.Duration
	flagTimeout       time.Duration
	flagLogLevel      string
	flagUnknownAlerts string
	flagCapture       string

	// Service UART flags
	portName      string
	baudRate      int
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "baristat",
	Short: "Coffee machine Bluetooth protocol client",
	Long: `Baristat - A CLI tool for reading status and statistics from Bluetooth
coffee machines.

Every session starts by recovering the per-connection key from the machine
status characteristic. Alerts, product counters and maintenance counters are
then decoded and labelled from the machine file of the detected model.

Bluetooth backends:
  gatttool: drives BlueZ gatttool in a pseudo terminal (default)
  native:   uses the host Bluetooth stack directly

Service UART connection modes:
  Bluetooth: --device AA:BB:CC:DD:EE:FF (default, uart_tx/uart_rx)
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the BARISTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Exit status is 0 on success and 1 on any error.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: resolveConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	// Bluetooth flags
	flags.StringVarP(&flagDevice, "device", "d", "", "Machine Bluetooth address")
	flags.StringVar(&flagBackend, "backend", cfg.Backend, "Bluetooth backend (gatttool or native)")
	flags.StringVar(&flagAdapter, "adapter", "", "Bluetooth adapter (gatttool backend, e.g. hci0)")
	flags.StringVarP(&flagResources, "resources", "r", cfg.Resources, "Machine resource archive")
	flags.DurationVar(&flagPollInterval, "poll-interval", cfg.PollInterval, "Delay between readiness polls")
	flags.DurationVar(&flagTimeout, "timeout", cfg.Timeout, "Timeout for each Bluetooth request")
	flags.StringVar(&flagLogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.StringVar(&flagUnknownAlerts, "unknown-alerts", cfg.UnknownAlerts, "Active alerts without a label (skip or report)")
	flags.StringVar(&flagCapture, "capture", "", "Capture raw traffic to a file (strftime pattern)")

	// Service UART flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", cfg.UART.Baud, "Baud rate (serial only)")
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// resolveConfig layers explicitly set flags over the config file
func resolveConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	override := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	override("device", func() { cfg.Device = flagDevice })
	override("backend", func() { cfg.Backend = flagBackend })
	override("adapter", func() { cfg.Adapter = flagAdapter })
	override("resources", func() { cfg.Resources = flagResources })
	override("poll-interval", func() { cfg.PollInterval = flagPollInterval })
	override("timeout", func() { cfg.Timeout = flagTimeout })
	override("log-level", func() { cfg.LogLevel = flagLogLevel })
	override("unknown-alerts", func() { cfg.UnknownAlerts = flagUnknownAlerts })
	override("capture", func() { cfg.Capture = flagCapture })
	override("port", func() { cfg.UART.Port = portName })
	override("baud", func() { cfg.UART.Baud = baudRate })
	override("url", func() { cfg.UART.URL = wsURL })
	override("username", func() { cfg.UART.Username = wsUsername })
	override("no-ssl-verify", func() { cfg.UART.NoSSLVerify = wsNoSSLVerify })

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
