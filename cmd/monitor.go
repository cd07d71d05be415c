// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/internal/client"
	"github.com/Thermoquad/baristat/pkg/jura"
	"github.com/Thermoquad/baristat/pkg/machinefile"
)

var (
	monitorInterval time.Duration
	useTUI          bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch alerts and product counters",
	Long: `Poll the machine for alerts and product counters and report changes.

Raised and cleared alerts and every product counter increment are logged as
events. The session key and model are resolved once at startup.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", 10*time.Second, "Polling interval")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// pollResult is one snapshot of the machine
type pollResult struct {
	at       time.Time
	alerts   []jura.Alert
	total    uint32
	products []jura.ProductCount
	stats    jura.SessionStats
	err      error
}

// poller owns the client; polls never overlap
type poller struct {
	client  *client.Client
	machine *machinefile.Machine
	policy  jura.UnknownPolicy
}

func (p *poller) poll(ctx context.Context) (r pollResult) {
	r.at = time.Now()
	defer func() { r.stats = *p.client.Stats() }()

	if r.alerts, r.err = p.client.Alerts(ctx, p.machine.Alerts, p.policy); r.err != nil {
		return r
	}
	record, err := p.client.Statistics(ctx, jura.ProductCounters)
	if err != nil {
		r.err = err
		return r
	}
	r.total = record.Total()
	r.products = jura.CorrelateProducts(record, p.machine.Products)
	return r
}

// monitorEvent is a change between two snapshots
type monitorEvent struct {
	message string
	isAlert bool
}

// diffPolls lists the alerts raised and cleared and the product counters
// that moved between two snapshots.
func diffPolls(prev, next pollResult) []monitorEvent {
	var events []monitorEvent

	before := make(map[int]jura.Alert, len(prev.alerts))
	for _, a := range prev.alerts {
		before[a.Bit] = a
	}
	after := make(map[int]bool, len(next.alerts))
	for _, a := range next.alerts {
		after[a.Bit] = true
		if _, ok := before[a.Bit]; !ok {
			events = append(events, monitorEvent{fmt.Sprintf("Alert raised: %s (bit %d)", a.Label, a.Bit), true})
		}
	}
	for _, a := range prev.alerts {
		if !after[a.Bit] {
			events = append(events, monitorEvent{fmt.Sprintf("Alert cleared: %s (bit %d)", a.Label, a.Bit), false})
		}
	}

	counts := make(map[int]uint32, len(prev.products))
	for _, p := range prev.products {
		counts[p.Code] = p.Value
	}
	for _, p := range next.products {
		if old, ok := counts[p.Code]; ok && p.Value > old {
			events = append(events, monitorEvent{fmt.Sprintf("%s brewed (+%d, %d total)", p.Name, p.Value-old, p.Value), false})
		}
	}
	return events
}

func runMonitor(cmd *cobra.Command, args []string) error {
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
	if _, err := c.Handshake(ctx); err != nil {
		return err
	}
	number, err := c.MachineModel(ctx)
	if err != nil {
		return err
	}
	model, machine, err := resources.Lookup(number)
	if err != nil {
		return err
	}
	if err := machine.Validate(); err != nil {
		logger.Warn("Machine file issues", "model", model.Name, "err", err)
	}

	p := &poller{client: c, machine: machine, policy: unknownPolicy()}
	if useTUI {
		prog := tea.NewProgram(initialMonitorModel(ctx, p, model.Name, monitorInterval), tea.WithAltScreen())
		_, err := prog.Run()
		return err
	}
	return runMonitorText(ctx, p, model.Name)
}

func runMonitorText(ctx context.Context, p *poller, modelName string) error {
	fmt.Printf("Baristat - Monitor\n")
	fmt.Printf("Machine: %s\n", modelName)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	prev := p.poll(ctx)
	if prev.err != nil {
		return prev.err
	}
	fmt.Print(jura.FormatAlerts(prev.alerts))
	fmt.Print(jura.FormatProducts(prev.total, prev.products))

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(p.client.Stats().String())
			return nil
		case <-ticker.C:
		}

		next := p.poll(ctx)
		if next.err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error("Poll failed", "err", next.err)
			continue
		}
		for _, e := range diffPolls(prev, next) {
			fmt.Printf("[%s] %s\n", next.at.Format("15:04:05"), e.message)
		}
		prev = next
	}
}
