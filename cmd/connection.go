// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/baristat/internal/config"
	"github.com/Thermoquad/baristat/internal/gatt"
)

// uartChunkSize is the largest uart_tx write, five wire characters. It fits
// the default ATT payload.
const uartChunkSize = 20

// Connection is a byte stream to the machine's service UART
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ErrConnectionClosed is returned by reads once the transport has gone away
var ErrConnectionClosed = errors.New("uart connection closed")

// frameConn turns a transport that moves whole frames into a byte stream.
// Frames are split across reads when the caller's buffer is short.
type frameConn struct {
	next    func() ([]byte, error)
	send    func([]byte) error
	close   func() error
	pending []byte
}

func (f *frameConn) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		frame, err := f.next()
		if err != nil {
			return 0, err
		}
		f.pending = frame
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *frameConn) Write(p []byte) (int, error) {
	if err := f.send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *frameConn) Close() error {
	return f.close()
}

// newBLEConnection carries the UART over the uart_tx and uart_rx
// characteristics. uart_rx is polled; an empty value means no pending bytes.
func newBLEConnection(ctx context.Context, sess gatt.Session, poll time.Duration) Connection {
	ctx, cancel := context.WithCancel(ctx)
	return &frameConn{
		next: func() ([]byte, error) {
			for {
				data, err := sess.Read(ctx, gatt.UARTRx)
				if ctx.Err() != nil {
					return nil, ErrConnectionClosed
				}
				if err != nil {
					return nil, err
				}
				if len(data) > 0 {
					return data, nil
				}
				select {
				case <-ctx.Done():
					return nil, ErrConnectionClosed
				case <-time.After(poll):
				}
			}
		},
		send: func(p []byte) error {
			for len(p) > 0 {
				n := min(len(p), uartChunkSize)
				if err := sess.Write(ctx, gatt.UARTTx, p[:n]); err != nil {
					return err
				}
				p = p[n:]
			}
			return nil
		},
		close: func() error {
			cancel()
			return sess.Close()
		},
	}
}

// newWebSocketConnection reads binary frames from a UART bridge. Text frames
// are bridge chatter and skipped.
func newWebSocketConnection(conn *websocket.Conn) Connection {
	return &frameConn{
		next: func() ([]byte, error) {
			for {
				kind, data, err := conn.ReadMessage()
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
				}
				if kind == websocket.BinaryMessage {
					return data, nil
				}
			}
		},
		send: func(p []byte) error {
			return conn.WriteMessage(websocket.BinaryMessage, p)
		},
		close: conn.Close,
	}
}

// openSerial opens a service port adapter. The machine UART runs 8N1.
func openSerial(name string, baud int) (Connection, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure serial port %s: %w", name, err)
	}
	return port, nil
}

func dialWebSocket(ctx context.Context, uart config.UART) (Connection, error) {
	headers := http.Header{}
	if uart.Username != "" {
		password, err := readPassword()
		if err != nil {
			return nil, err
		}
		credentials := base64.StdEncoding.EncodeToString([]byte(uart.Username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.Timeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: uart.NoSSLVerify},
	}
	conn, resp, err := dialer.DialContext(ctx, uart.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return newWebSocketConnection(conn), nil
}

// readPassword takes the bridge password from the environment, then the terminal
func readPassword() (string, error) {
	if pw := os.Getenv(config.PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	if pw, err := term.ReadPassword(int(syscall.Stdin)); err == nil {
		return string(pw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the service UART. The machine's own Bluetooth link is
// used unless a serial port or WebSocket bridge is configured.
func OpenConnection(ctx context.Context) (Connection, string, error) {
	uart := cfg.UART
	switch {
	case uart.URL != "":
		conn, err := dialWebSocket(ctx, uart)
		if err != nil {
			return nil, "", err
		}
		return conn, "WebSocket: " + uart.URL, nil

	case uart.Port != "":
		conn, err := openSerial(uart.Port, uart.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", uart.Port, uart.Baud), nil

	case cfg.Device != "":
		sess, err := openSession(ctx)
		if err != nil {
			return nil, "", err
		}
		return newBLEConnection(ctx, sess, cfg.PollInterval), fmt.Sprintf("Bluetooth: %s (%s)", cfg.Device, cfg.Backend), nil
	}
	return nil, "", fmt.Errorf("one of --device, --port or --url must be specified")
}
