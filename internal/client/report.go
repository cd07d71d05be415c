// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/Thermoquad/baristat/pkg/jura"
	"github.com/Thermoquad/baristat/pkg/machinefile"
)

// MachineSource resolves a model number to its metadata
type MachineSource interface {
	Lookup(number int) (machinefile.Model, *machinefile.Machine, error)
}

// Report is the result of a full status sequence
type Report struct {
	Key      jura.Key
	Model    machinefile.Model
	Alerts   []jura.Alert
	Total    uint32
	Products []jura.ProductCount
	Percent  []jura.Counter
	Counts   []jura.Counter

	// Issues holds recoverable metadata mismatches
	Issues []error
}

// Report runs the full sequence: handshake, model lookup, alerts, product
// counters and both maintenance banks.
func (c *Client) Report(ctx context.Context, source MachineSource, policy jura.UnknownPolicy) (*Report, error) {
	key, err := c.Handshake(ctx)
	if err != nil {
		return nil, err
	}

	number, err := c.MachineModel(ctx)
	if err != nil {
		return nil, err
	}
	model, machine, err := source.Lookup(number)
	if err != nil {
		return nil, err
	}
	c.log.Info("Machine", "model", model.Name, "number", number)

	r := &Report{Key: key, Model: model}
	var issues *multierror.Error

	status, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}
	r.Alerts = jura.ScanAlerts(status, machine.Alerts, policy)
	issues = multierror.Append(issues, jura.ValidateAlerts(status, machine.Alerts))
	for _, a := range r.Alerts {
		c.log.Info("Alert active", "bit", a.Bit, "label", a.Label)
	}

	products, err := c.Statistics(ctx, jura.ProductCounters)
	if err != nil {
		return nil, err
	}
	r.Total = products.Total()
	r.Products = jura.CorrelateProducts(products, machine.Products)
	issues = multierror.Append(issues, jura.ValidateProducts(machine.Products, products))
	c.log.Info("Product counters", "total", r.Total, "products", len(r.Products))

	percent, err := c.Statistics(ctx, jura.MaintenancePercent)
	if err != nil {
		return nil, err
	}
	r.Percent = jura.CorrelateCounters(percent, machine.CleaningPercent)
	issues = multierror.Append(issues, jura.ValidateCounters(percent, machine.CleaningPercent))

	counts, err := c.Statistics(ctx, jura.MaintenanceCount)
	if err != nil {
		return nil, err
	}
	r.Counts = jura.CorrelateCounters(counts, machine.CleaningCount)
	issues = multierror.Append(issues, jura.ValidateCounters(counts, machine.CleaningCount))

	// Appending nil errors is a no-op, so Errors holds only real issues
	r.Issues = issues.Errors
	c.stats.RecordMetadataIssues(len(r.Issues))
	for _, issue := range r.Issues {
		c.log.Warn("Metadata mismatch", "issue", issue)
	}
	return r, nil
}

// String renders the report for the terminal
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Machine: %s (%d)\n", r.Model.Name, r.Model.Number)
	fmt.Fprintf(&sb, "Key:     %s\n\n", r.Key)
	sb.WriteString("Alerts:\n")
	sb.WriteString(jura.FormatAlerts(r.Alerts))
	sb.WriteString("\nProducts:\n")
	sb.WriteString(jura.FormatProducts(r.Total, r.Products))
	sb.WriteString("\nMaintenance (percent):\n")
	sb.WriteString(jura.FormatCounters(r.Percent, "%"))
	sb.WriteString("\nMaintenance (count):\n")
	sb.WriteString(jura.FormatCounters(r.Counts, ""))
	if len(r.Issues) > 0 {
		fmt.Fprintf(&sb, "\n%d metadata issue(s):\n", len(r.Issues))
		for _, issue := range r.Issues {
			fmt.Fprintf(&sb, "  - %v\n", issue)
		}
	}
	return sb.String()
}
