// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// consoleEntry is one line of the console transcript
type consoleEntry struct {
	timestamp time.Time
	text      string
	sent      bool
	isError   bool
}

type consoleModel struct {
	conn       Connection
	connInfo   string
	lines      <-chan uartLine
	input      textinput.Model
	transcript []consoleEntry
	maxEntries int
	width      int
	height     int
	closed     bool
	quitting   bool
}

type consoleLineMsg uartLine

type consoleClosedMsg struct{}

func initialConsoleModel(conn Connection, connInfo string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "TY:"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	return consoleModel{
		conn:       conn,
		connInfo:   connInfo,
		lines:      readUARTLines(conn),
		input:      ti,
		maxEntries: 200,
		width:      80,
		height:     24,
	}
}

func (m consoleModel) waitForLine() tea.Cmd {
	return func() tea.Msg {
		l, ok := <-m.lines
		if !ok {
			return consoleClosedMsg{}
		}
		return consoleLineMsg(l)
	}
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForLine())
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			command := strings.TrimSpace(m.input.Value())
			if command == "" || m.closed {
				return m, nil
			}
			m.input.Reset()
			if err := sendUART(m.conn, command); err != nil {
				m.addEntry(fmt.Sprintf("send failed: %v", err), false, true)
			} else {
				m.addEntry(command, true, false)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case consoleLineMsg:
		if msg.err != nil {
			m.addEntry(msg.err.Error(), false, true)
		} else {
			m.addEntry(msg.text, false, false)
		}
		return m, m.waitForLine()

	case consoleClosedMsg:
		m.closed = true
		m.addEntry("connection closed", false, true)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) addEntry(text string, sent, isError bool) {
	m.transcript = append(m.transcript, consoleEntry{
		timestamp: time.Now(),
		text:      text,
		sent:      sent,
		isError:   isError,
	})
	if len(m.transcript) > m.maxEntries {
		m.transcript = m.transcript[len(m.transcript)-m.maxEntries:]
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Closing console...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	sentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	replyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("BARISTAT - SERVICE CONSOLE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Enter to send | Esc to quit", m.connInfo)))
	s.WriteString("\n\n")

	logHeight := m.height - 9
	if logHeight < 5 {
		logHeight = 5
	}
	start := len(m.transcript) - logHeight
	if start < 0 {
		start = 0
	}

	var body strings.Builder
	if len(m.transcript) == 0 {
		body.WriteString(headerStyle.Render("  (no traffic yet)"))
	}
	for _, e := range m.transcript[start:] {
		ts := headerStyle.Render(e.timestamp.Format("15:04:05.000"))
		switch {
		case e.isError:
			body.WriteString(fmt.Sprintf("%s %s\n", ts, errorStyle.Render("✗ "+e.text)))
		case e.sent:
			body.WriteString(fmt.Sprintf("%s %s\n", ts, sentStyle.Render("> "+e.text)))
		default:
			body.WriteString(fmt.Sprintf("%s %s\n", ts, replyStyle.Render("< "+e.text)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(body.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}
