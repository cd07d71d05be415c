// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/internal/client"
	"github.com/Thermoquad/baristat/internal/gatt"
	"github.com/Thermoquad/baristat/pkg/jura"
	"github.com/Thermoquad/baristat/pkg/machinefile"
)

var replayReport bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture file offline",
	Long: `Print every transfer of a capture file written with --capture.

The session key is recovered from the first machine status read, so enciphered
transfers are shown both raw and deciphered.

With --report the capture is fed back through the status sequence and the
full report is printed as if the machine were connected.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayReport, "report", false, "Rebuild the status report from the capture")
}

// enciphered lists the characteristics whose values use the session key
var enciphered = map[string]bool{
	gatt.MachineStatus.Name:     true,
	gatt.StatisticsCommand.Name: true,
	gatt.StatisticsData.Name:    true,
}

func openReplay(path string) (*gatt.Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return gatt.NewReplay(f)
}

// replayKey recovers the session key from the first machine status read
func replayKey(records []*jura.CaptureRecord) (jura.Key, bool) {
	for _, rec := range records {
		if rec.Characteristic == gatt.MachineStatus.Name && rec.Direction == jura.DirectionRead {
			key, err := jura.RecoverKey(rec.Raw)
			return key, err == nil
		}
	}
	return 0, false
}

// replayReportFor runs the status sequence over a capture
func replayReportFor(ctx context.Context, rp *gatt.Replay) (*client.Report, error) {
	resources, err := machinefile.OpenResources(cfg.Resources)
	if err != nil {
		return nil, err
	}
	defer resources.Close()

	c := client.New(rp, client.Options{PollInterval: time.Millisecond, Logger: logger})
	return c.Report(ctx, resources, unknownPolicy())
}

func runReplay(cmd *cobra.Command, args []string) error {
	rp, err := openReplay(args[0])
	if err != nil {
		return err
	}

	if replayReport {
		report, err := replayReportFor(context.Background(), rp)
		if err != nil {
			return err
		}
		fmt.Print(report.String())
		return nil
	}

	records := rp.Records()
	key, hasKey := replayKey(records)
	if len(records) > 0 {
		fmt.Printf("Session: %s\n", records[0].Session)
	}
	if hasKey {
		fmt.Printf("Key:     %s\n", key)
	} else {
		fmt.Printf("Key:     (not recoverable)\n")
	}
	fmt.Printf("Records: %d\n\n", len(records))

	for _, rec := range records {
		fmt.Printf("[%s] %-5s %-18s %s\n",
			rec.Time().Format("15:04:05.000"), rec.Direction, rec.Characteristic, jura.FormatHex(rec.Raw))
		if hasKey && enciphered[rec.Characteristic] {
			fmt.Printf("%*s decoded: %s\n", 39, "", jura.FormatHex(jura.Decode(rec.Raw, key)))
		}
	}
	return nil
}
