// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type monitorModel struct {
	ctx           context.Context
	poller        *poller
	modelName     string
	interval      time.Duration
	spinner       spinner.Model
	polling       bool
	tickGen       int
	last          *pollResult
	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type monitorTickMsg struct {
	gen int
}
type pollDoneMsg pollResult

func initialMonitorModel(ctx context.Context, p *poller, modelName string, interval time.Duration) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return monitorModel{
		ctx:           ctx,
		poller:        p,
		modelName:     modelName,
		interval:      interval,
		spinner:       sp,
		polling:       true,
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.pollCmd())
}

func (m monitorModel) pollCmd() tea.Cmd {
	return func() tea.Msg {
		return pollDoneMsg(m.poller.poll(m.ctx))
	}
}

// tickCmd schedules the next poll. Ticks from an older schedule are dropped.
func (m *monitorModel) tickCmd() tea.Cmd {
	m.tickGen++
	gen := m.tickGen
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return monitorTickMsg{gen: gen}
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if !m.polling {
				m.polling = true
				return m, tea.Batch(m.spinner.Tick, m.pollCmd())
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		if !m.polling {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case monitorTickMsg:
		if m.polling || msg.gen != m.tickGen {
			return m, nil
		}
		m.polling = true
		return m, tea.Batch(m.spinner.Tick, m.pollCmd())

	case pollDoneMsg:
		m.polling = false
		result := pollResult(msg)
		if result.err != nil {
			if m.ctx.Err() != nil {
				return m, tea.Quit
			}
			m.addLogEntry(fmt.Sprintf("Poll failed: %v", result.err), true)
			next := m.tickCmd()
			return m, next
		}
		if m.last == nil {
			m.addLogEntry(fmt.Sprintf("Connected to %s", m.modelName), false)
		} else {
			for _, e := range diffPolls(*m.last, result) {
				m.addLogEntry(e.message, e.isAlert)
			}
		}
		m.last = &result
		next := m.tickCmd()
		return m, next
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("BARISTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Machine: %s | Interval: %s | 'r' to refresh, 'q' to quit",
		m.modelName, m.interval)))
	s.WriteString("\n\n")

	if m.polling {
		s.WriteString(m.spinner.View() + warningStyle.Render(" Polling..."))
	} else if m.last != nil {
		s.WriteString(valueStyle.Render("✓ Updated " + m.last.at.Format("15:04:05")))
	}
	s.WriteString("\n\n")

	if m.last != nil {
		// Alerts
		alerts := strings.Builder{}
		if len(m.last.alerts) == 0 {
			alerts.WriteString(valueStyle.Render("No active alerts"))
		}
		for i, a := range m.last.alerts {
			if i > 0 {
				alerts.WriteString("\n")
			}
			style := errorStyle
			if !a.Known {
				style = warningStyle
			}
			alerts.WriteString(fmt.Sprintf("%s %s", headerStyle.Render(fmt.Sprintf("bit %3d", a.Bit)), style.Render(a.Label)))
		}
		s.WriteString(labelStyle.Render("Alerts:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(alerts.String()))
		s.WriteString("\n\n")

		// Counters
		counters := strings.Builder{}
		counters.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.last.total))))
		for _, p := range m.last.products {
			counters.WriteString(fmt.Sprintf("\n%-24s %s", p.Name, valueStyle.Render(fmt.Sprintf("%8d", p.Value))))
		}
		s.WriteString(labelStyle.Render("Products:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(counters.String()))
		s.WriteString("\n\n")

		st := m.last.stats
		s.WriteString(headerStyle.Render(fmt.Sprintf("Reads: %d  Writes: %d  Busy polls: %d  Errors: %d",
			st.Reads, st.Writes, st.Polls, st.TransportErrors)))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.eventLog[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("01/02/06 15:04:05"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
