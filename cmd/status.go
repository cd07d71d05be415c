// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/pkg/machinefile"
)

var showSessionStats bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read model, alerts, product and maintenance counters",
	Long: `Connect to the machine, recover the session key and print a full report.

The sequence is:
  1. Read the machine status and recover the session key
  2. Read the model number from the manufacturer data
  3. Load the model's machine file from the resource archive
  4. Read and label the active alerts
  5. Read the product counters and both maintenance banks

Metadata mismatches (unlabelled alerts, products outside the counter record)
are listed after the report and do not fail the command.

Use --capture to record the raw Bluetooth traffic for later replay.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&showSessionStats, "stats", false, "Print session statistics after the report")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resources, err := machinefile.OpenResources(cfg.Resources)
	if err != nil {
		return err
	}
	defer resources.Close()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	c := newClient(sess)
	report, err := c.Report(ctx, resources, unknownPolicy())
	if err != nil {
		return err
	}

	fmt.Print(report.String())
	if showSessionStats {
		fmt.Println()
		fmt.Print(c.Stats().String())
	}
	return nil
}
