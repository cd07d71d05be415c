// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/internal/chart"
	"github.com/Thermoquad/baristat/internal/client"
	"github.com/Thermoquad/baristat/pkg/machinefile"
)

var (
	chartOutput string
	chartFrom   string
	chartBank   string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render counters as a bar chart",
	Long: `Read the counters from the machine, or from a capture with --from, and
render them as a bar chart. The image format follows the --output extension
(png, svg, pdf).

--bank selects the counters:
  products  product counters (default)
  percent   maintenance percent
  count     maintenance count`,
	RunE: runChart,
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVarP(&chartOutput, "output", "o", "counters.png", "Output image")
	chartCmd.Flags().StringVar(&chartFrom, "from", "", "Capture file to read instead of the machine")
	chartCmd.Flags().StringVar(&chartBank, "bank", "products", "Counters to draw (products, percent, count)")
}

func chartReport(ctx context.Context) (*client.Report, error) {
	if chartFrom != "" {
		rp, err := openReplay(chartFrom)
		if err != nil {
			return nil, err
		}
		return replayReportFor(ctx, rp)
	}

	resources, err := machinefile.OpenResources(cfg.Resources)
	if err != nil {
		return nil, err
	}
	defer resources.Close()

	sess, err := openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return newClient(sess).Report(ctx, resources, unknownPolicy())
}

func runChart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := chartReport(ctx)
	if err != nil {
		return err
	}

	var (
		bars  []chart.Bar
		title string
		unit  string
	)
	switch chartBank {
	case "products":
		bars, title, unit = chart.ProductBars(report.Products), "Product counters", "brews"
	case "percent":
		bars, title, unit = chart.CounterBars(report.Percent), "Maintenance", "percent"
	case "count":
		bars, title, unit = chart.CounterBars(report.Counts), "Maintenance", "count"
	default:
		return fmt.Errorf("unknown bank %q", chartBank)
	}

	p, err := chart.New(fmt.Sprintf("%s: %s", report.Model.Name, title), unit, bars)
	if err != nil {
		return err
	}
	if err := chart.Save(p, chartOutput); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bars)\n", chartOutput, len(bars))
	return nil
}
