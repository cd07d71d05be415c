// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/baristat/internal/gatt"
	"github.com/Thermoquad/baristat/pkg/jura"
)

// ============================================================
// Monitor Tests
// ============================================================

func TestDiffPolls(t *testing.T) {
	prev := pollResult{
		alerts: []jura.Alert{
			{Bit: 0, Label: "insert tray", Known: true},
			{Bit: 3, Label: "fill beans", Known: true},
		},
		products: []jura.ProductCount{
			{Code: 1, Name: "Espresso", Value: 10},
			{Code: 2, Name: "Coffee", Value: 4},
		},
	}
	next := pollResult{
		alerts: []jura.Alert{
			{Bit: 3, Label: "fill beans", Known: true},
			{Bit: 5, Label: "empty grounds", Known: true},
		},
		products: []jura.ProductCount{
			{Code: 1, Name: "Espresso", Value: 12},
			{Code: 2, Name: "Coffee", Value: 4},
		},
	}

	events := diffPolls(prev, next)
	require.Len(t, events, 3)
	assert.Equal(t, monitorEvent{"Alert raised: empty grounds (bit 5)", true}, events[0])
	assert.Equal(t, monitorEvent{"Alert cleared: insert tray (bit 0)", false}, events[1])
	assert.Equal(t, monitorEvent{"Espresso brewed (+2, 12 total)", false}, events[2])

	assert.Empty(t, diffPolls(next, next))
}

// ============================================================
// Decode Helper Tests
// ============================================================

func TestParseKey(t *testing.T) {
	tests := []struct {
		input   string
		want    jura.Key
		wantErr bool
	}{
		{"5a", 0x5a, false},
		{"0x5A", 0x5a, false},
		{"ff", 0xff, false},
		{"100", 0, true},
		{"zz", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "A", printable('A'))
	assert.Equal(t, `\r`, printable('\r'))
	assert.Equal(t, `\n`, printable('\n'))
	assert.Equal(t, `\x00`, printable(0x00))
}

// ============================================================
// UART Tests
// ============================================================

// pipeConnection is a Connection whose reads come from a pipe
type pipeConnection struct {
	*io.PipeReader
	written []byte
}

func (p *pipeConnection) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func TestReadUARTLines(t *testing.T) {
	r, w := io.Pipe()
	conn := &pipeConnection{PipeReader: r}
	lines := readUARTLines(conn)

	go func() {
		w.Write(jura.EncodeText("ty:EF532M V02.03\r\n"))
		w.Close()
	}()

	select {
	case l := <-lines:
		require.NoError(t, l.err)
		assert.Equal(t, "ty:EF532M V02.03", l.text)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for line")
	}

	// The stream ends with the read error, then the channel closes
	l := <-lines
	assert.ErrorIs(t, l.err, io.EOF)
	_, ok := <-lines
	assert.False(t, ok)
}

func TestSendUART(t *testing.T) {
	conn := &pipeConnection{}
	require.NoError(t, sendUART(conn, "TY:"))
	assert.Equal(t, jura.EncodeText("TY:\r\n"), conn.written)
}

// fakeUARTSession serves queued uart_rx values and records uart_tx writes
type fakeUARTSession struct {
	mu      sync.Mutex
	rx      [][]byte
	tx      [][]byte
	closed  bool
	readErr error
}

func (s *fakeUARTSession) Read(ctx context.Context, c gatt.Characteristic) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c != gatt.UARTRx {
		return nil, fmt.Errorf("unexpected read of %s", c)
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	if len(s.rx) == 0 {
		return nil, nil
	}
	v := s.rx[0]
	s.rx = s.rx[1:]
	return v, nil
}

func (s *fakeUARTSession) ReadUUID(ctx context.Context, c gatt.Characteristic) ([]byte, error) {
	return s.Read(ctx, c)
}

func (s *fakeUARTSession) Write(ctx context.Context, c gatt.Characteristic, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c != gatt.UARTTx {
		return fmt.Errorf("unexpected write to %s", c)
	}
	s.tx = append(s.tx, append([]byte(nil), data...))
	return nil
}

func (s *fakeUARTSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestBLEConnection_ReadLines(t *testing.T) {
	wire := jura.EncodeText("ty:EF532M\r\n")
	sess := &fakeUARTSession{rx: [][]byte{wire[:6], {}, wire[6:30], nil, wire[30:]}}
	conn := newBLEConnection(context.Background(), sess, time.Millisecond)
	t.Cleanup(func() { conn.Close() })

	select {
	case l := <-readUARTLines(conn):
		require.NoError(t, l.err)
		assert.Equal(t, "ty:EF532M", l.text)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for line")
	}
}

func TestBLEConnection_ChunkedWrite(t *testing.T) {
	sess := &fakeUARTSession{}
	conn := newBLEConnection(context.Background(), sess, time.Millisecond)
	defer conn.Close()

	require.NoError(t, sendUART(conn, "AN:0A"))

	var joined []byte
	for i, chunk := range sess.tx {
		if len(chunk) > uartChunkSize {
			t.Errorf("chunk %d: expected at most %d bytes, got %d", i, uartChunkSize, len(chunk))
		}
		if len(chunk)%jura.WireCharSize != 0 {
			t.Errorf("chunk %d splits a wire character (%d bytes)", i, len(chunk))
		}
		joined = append(joined, chunk...)
	}
	assert.Len(t, sess.tx, 2)
	assert.Equal(t, jura.EncodeText("AN:0A\r\n"), joined)
}

func TestBLEConnection_Close(t *testing.T) {
	sess := &fakeUARTSession{}
	conn := newBLEConnection(context.Background(), sess, time.Millisecond)
	lines := readUARTLines(conn)

	require.NoError(t, conn.Close())
	assert.True(t, sess.closed)

	select {
	case l := <-lines:
		assert.ErrorIs(t, l.err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("reader still polling after Close")
	}
}

func TestBLEConnection_ReadError(t *testing.T) {
	sess := &fakeUARTSession{readErr: gatt.ErrClosed}
	conn := newBLEConnection(context.Background(), sess, time.Millisecond)
	defer conn.Close()

	_, err := conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, gatt.ErrClosed)
}

// ============================================================
// Text Decode Tests
// ============================================================

func TestDecodeTextArgs(t *testing.T) {
	ok := []string{
		jura.FormatWireHex(jura.EncodeByte('O')),
		jura.FormatWireHex(jura.EncodeByte('K')),
	}
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"stream", []string{jura.FormatHex(jura.EncodeText("OK"))}, "OK", false},
		{"per character", ok, "OK", false},
		{"short character", []string{ok[0], "5f 5b"}, "", true},
		{"off template", []string{ok[0], "00 5b 5b 5f"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTextArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================================
// Decode Command Tests
// ============================================================

func TestRunDecode_UnknownInterpretation(t *testing.T) {
	saved := decodeAs
	t.Cleanup(func() { decodeAs = saved })
	decodeAs = "bogus"

	// The payload is not even valid hex; the interpretation is rejected first
	err := runDecode(decodeCmd, []string{"zz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown interpretation "bogus"`)
}

// ============================================================
// Read Command Tests
// ============================================================

func TestLookupCharacteristic(t *testing.T) {
	c, err := lookupCharacteristic("Manufacturer_Data")
	require.NoError(t, err)
	assert.Equal(t, gatt.ManufacturerData, c)

	_, err = lookupCharacteristic("boiler")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statistics_data")
}
