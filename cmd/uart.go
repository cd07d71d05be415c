// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/pkg/jura"
)

var uartCmd = &cobra.Command{
	Use:   "uart",
	Short: "Talk to the machine's service UART",
	Long: `Send commands to the service UART and print the replies.

Characters travel in the four byte wire form and every line ends with CR LF.
By default the UART is reached over Bluetooth through the uart_tx and uart_rx
characteristics of --device. Use --port for a serial adapter on the service
port or --url for a WebSocket bridge instead.`,
}

var uartSendCmd = &cobra.Command{
	Use:     "send COMMAND",
	Short:   "Send one command and print the reply",
	Example: `  baristat uart send TY: --device AA:BB:CC:DD:EE:FF
  baristat uart send TY: --port /dev/ttyUSB0`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUARTSend,
}

var uartConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive service UART console",
	RunE:  runUARTConsole,
}

func init() {
	rootCmd.AddCommand(uartCmd)
	uartCmd.AddCommand(uartSendCmd, uartConsoleCmd)
}

// uartLine is a decoded reply line or a stream error
type uartLine struct {
	text string
	err  error
}

// readUARTLines decodes lines from conn until it fails. Bytes outside the
// wire template are reported and dropped without losing character alignment.
func readUARTLines(conn Connection) <-chan uartLine {
	lines := make(chan uartLine, 16)
	go func() {
		defer close(lines)
		decoder := jura.NewTextDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				line, done, derr := decoder.DecodeByte(buf[i])
				if derr != nil {
					lines <- uartLine{err: derr}
					continue
				}
				if done {
					lines <- uartLine{text: line}
				}
			}
			if err != nil {
				lines <- uartLine{err: err}
				return
			}
		}
	}()
	return lines
}

func sendUART(conn Connection, command string) error {
	_, err := conn.Write(jura.EncodeText(command + "\r\n"))
	return err
}

func runUARTSend(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Debug("Connected", "connection", connInfo)

	lines := readUARTLines(conn)
	if err := sendUART(conn, args[0]); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}

	timeout := time.After(cfg.Timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("no reply within %s", cfg.Timeout)
		case l, ok := <-lines:
			if !ok || errors.Is(l.err, ErrConnectionClosed) {
				return ErrConnectionClosed
			}
			if l.err != nil {
				logger.Warn("Read error", "err", l.err)
				continue
			}
			fmt.Println(l.text)
			return nil
		}
	}
}

func runUARTConsole(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(context.Background())
	if err != nil {
		return err
	}
	defer conn.Close()

	p := tea.NewProgram(initialConsoleModel(conn, connInfo), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
