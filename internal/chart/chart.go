// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package chart renders statistics records as bar charts.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Thermoquad/baristat/pkg/jura"
)

// Default image size
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

// ErrNoData is returned when there is nothing to draw
var ErrNoData = errors.New("no counters to chart")

var barColor = color.RGBA{R: 128, G: 80, B: 48, A: 255}

// Bar is one labelled bar
type Bar struct {
	Label string
	Value float64
}

// ProductBars converts product counters to bars, in code order
func ProductBars(counts []jura.ProductCount) []Bar {
	bars := make([]Bar, len(counts))
	for i, c := range counts {
		bars[i] = Bar{Label: c.Name, Value: float64(c.Value)}
	}
	return bars
}

// CounterBars converts maintenance counters to bars
func CounterBars(counters []jura.Counter) []Bar {
	bars := make([]Bar, len(counters))
	for i, c := range counters {
		bars[i] = Bar{Label: c.Label, Value: float64(c.Value)}
	}
	return bars
}

// New builds a bar chart
func New(title, ylabel string, bars []Bar) (*plot.Plot, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	values := make(plotter.Values, len(bars))
	names := make([]string, len(bars))
	for i, b := range bars {
		values[i] = b.Value
		names[i] = b.Label
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.Y.Min = 0

	chart, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("failed to build bar chart: %w", err)
	}
	chart.Color = barColor
	chart.LineStyle.Width = vg.Length(0)
	p.Add(chart)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1

	return p, nil
}

// Save writes the chart to path. The format follows the file extension.
func Save(p *plot.Plot, path string) error {
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}

// Write renders the chart to w in format ("png", "svg", "pdf")
func Write(p *plot.Plot, w io.Writer, format string) error {
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, strings.TrimPrefix(format, "."))
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

// Format returns the image format implied by a file name
func Format(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "png"
	}
	return ext
}
