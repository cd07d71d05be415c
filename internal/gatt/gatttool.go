// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gatt

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"

	"github.com/Thermoquad/baristat/pkg/jura"
)

// DefaultExpectTimeout bounds every gatttool request
const DefaultExpectTimeout = 5 * time.Second

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	reConnected  = regexp.MustCompile(`Connection successful`)
	reHandleRead = regexp.MustCompile(`Characteristic value/descriptor: ([0-9a-fA-F ]+)`)
	reUUIDRead   = regexp.MustCompile(`handle: 0x[0-9a-fA-F]+\s+value: ([0-9a-fA-F ]+)`)
	reWritten    = regexp.MustCompile(`Characteristic value was written successfully`)
	reFailure    = regexp.MustCompile(`(?i)(error: .*|connect error.*|.*failed.*)`)
)

// GattToolOptions configures the gatttool driver
type GattToolOptions struct {
	Binary  string
	Adapter string
	Timeout time.Duration
	Logger  *log.Logger
}

// GattTool drives an interactive gatttool process
type GattTool struct {
	rw      io.ReadWriteCloser
	cmd     *exec.Cmd
	lines   chan string
	done    chan struct{}
	timeout time.Duration
	log     *log.Logger

	mu     sync.Mutex
	closed bool
}

// DialGattTool starts `gatttool -b ADDRESS -I -t random` in a pty and connects.
func DialGattTool(ctx context.Context, address string, opts GattToolOptions) (*GattTool, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "gatttool"
	}
	args := []string{"-b", address, "-I", "-t", "random"}
	if opts.Adapter != "" {
		args = append(args, "-i", opts.Adapter)
	}

	cmd := exec.Command(binary, args...)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	g := newGattTool(f, opts)
	g.cmd = cmd
	g.log.Info("Connecting", "device", address)
	if err := g.connect(ctx); err != nil {
		g.Close()
		return nil, err
	}
	g.log.Info("Connected")
	return g, nil
}

func newGattTool(rw io.ReadWriteCloser, opts GattToolOptions) *GattTool {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultExpectTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	g := &GattTool{
		rw:      rw,
		lines:   make(chan string, 64),
		done:    make(chan struct{}),
		timeout: timeout,
		log:     logger,
	}
	go g.readLines()
	return g
}

// readLines splits the pty output into lines without prompt escapes
func (g *GattTool) readLines() {
	defer close(g.lines)
	r := bufio.NewReader(g.rw)
	for {
		raw, err := r.ReadString('\n')
		if raw != "" {
			line := strings.TrimSpace(ansiEscape.ReplaceAllString(raw, ""))
			// The interactive prompt redraws itself with carriage returns
			if i := strings.LastIndex(line, "\r"); i >= 0 {
				line = strings.TrimSpace(line[i+1:])
			}
			if line != "" {
				select {
				case g.lines <- line:
				case <-g.done:
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// drain discards output left over from earlier requests
func (g *GattTool) drain() {
	for {
		select {
		case line, ok := <-g.lines:
			if !ok {
				return
			}
			g.log.Debug("gatttool", "discard", line)
		default:
			return
		}
	}
}

func (g *GattTool) send(command string) error {
	g.log.Debug("gatttool", "send", command)
	if _, err := io.WriteString(g.rw, command+"\n"); err != nil {
		return fmt.Errorf("failed to send %q: %w", command, err)
	}
	return nil
}

// expect waits for a line matching want and returns its submatches
func (g *GattTool) expect(ctx context.Context, want *regexp.Regexp) ([]string, error) {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for %q", want.String())
		case line, ok := <-g.lines:
			if !ok {
				return nil, ErrClosed
			}
			g.log.Debug("gatttool", "recv", line)
			if m := want.FindStringSubmatch(line); m != nil {
				return m, nil
			}
			if reFailure.MatchString(line) {
				return nil, fmt.Errorf("gatttool: %s", line)
			}
		}
	}
}

func (g *GattTool) request(ctx context.Context, command string, want *regexp.Regexp) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	g.drain()
	if err := g.send(command); err != nil {
		return nil, err
	}
	return g.expect(ctx, want)
}

func (g *GattTool) connect(ctx context.Context) error {
	if _, err := g.request(ctx, "connect", reConnected); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	return nil
}

// Read reads a characteristic value by handle
func (g *GattTool) Read(ctx context.Context, c Characteristic) ([]byte, error) {
	m, err := g.request(ctx, "char-read-hnd "+c.HandleString(), reHandleRead)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.Name, err)
	}
	return jura.ParseHex(m[1])
}

// ReadUUID reads a characteristic value by UUID
func (g *GattTool) ReadUUID(ctx context.Context, c Characteristic) ([]byte, error) {
	m, err := g.request(ctx, "char-read-uuid "+c.UUID, reUUIDRead)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.Name, err)
	}
	return jura.ParseHex(m[1])
}

// Write writes a characteristic value by handle and waits for the response
func (g *GattTool) Write(ctx context.Context, c Characteristic, data []byte) error {
	command := fmt.Sprintf("char-write-req %s %s", c.HandleString(), hex.EncodeToString(data))
	if _, err := g.request(ctx, command, reWritten); err != nil {
		return fmt.Errorf("write %s: %w", c.Name, err)
	}
	return nil
}

// Close disconnects and stops gatttool
func (g *GattTool) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	close(g.done)

	_ = g.send("disconnect")
	_ = g.send("exit")
	err := g.rw.Close()
	if g.cmd != nil && g.cmd.Process != nil {
		done := make(chan struct{})
		go func() {
			_ = g.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			_ = g.cmd.Process.Kill()
		}
	}
	return err
}
