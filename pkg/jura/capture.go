// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/sigurn/crc16"
)

// Capture framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20

	MaxFrameSize = 4096
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Direction of a captured transfer
type Direction uint8

const (
	DirectionRead Direction = iota
	DirectionWrite
)

// String returns "read" or "write"
func (d Direction) String() string {
	if d == DirectionWrite {
		return "write"
	}
	return "read"
}

// CaptureRecord is one raw transfer with the machine, before decoding.
type CaptureRecord struct {
	Session        string    `cbor:"0,keyasint"`
	UnixNano       int64     `cbor:"1,keyasint"`
	Characteristic string    `cbor:"2,keyasint"`
	Direction      Direction `cbor:"3,keyasint"`
	Raw            []byte    `cbor:"4,keyasint"`
}

// Time returns the capture timestamp
func (r *CaptureRecord) Time() time.Time {
	return time.Unix(0, r.UnixNano)
}

// CalculateCRC computes the CRC-16/CCITT-FALSE checksum of a frame body
func CalculateCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// EncodeFrame wraps a CBOR record body in start/end bytes with byte stuffing
// and a big-endian CRC trailer.
func EncodeFrame(body []byte) ([]byte, error) {
	if len(body)+2 > MaxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes (max %d)", len(body)+2, MaxFrameSize)
	}
	crc := CalculateCRC(body)
	data := make([]byte, 0, len(body)+2)
	data = append(data, body...)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)
	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)
	return frame, nil
}

// stuffBytes escapes framing bytes as ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}

// Frame decoder states
const (
	frameIdle = iota
	frameBody
)

// FrameDecoder extracts frame bodies from a capture stream
type FrameDecoder struct {
	state      int
	escapeNext bool
	buffer     []byte
}

// NewFrameDecoder creates a new capture frame decoder
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{
		state:  frameIdle,
		buffer: make([]byte, 0, 256),
	}
}

// Reset resets the decoder state to idle
func (d *FrameDecoder) Reset() {
	d.state = frameIdle
	d.escapeNext = false
	d.buffer = d.buffer[:0]
}

// DecodeByte processes a single byte. It returns the CRC-checked body of a
// completed frame, or nil while a frame is incomplete.
func (d *FrameDecoder) DecodeByte(b byte) ([]byte, error) {
	switch {
	case b == StartByte:
		d.Reset()
		d.state = frameBody
		return nil, nil

	case d.state == frameIdle:
		return nil, nil

	case b == EndByte:
		if d.escapeNext {
			d.Reset()
			return nil, fmt.Errorf("incomplete escape sequence at end of frame")
		}
		data := d.buffer
		d.state = frameIdle
		if len(data) < 2 {
			d.Reset()
			return nil, fmt.Errorf("frame too short: %d bytes", len(data))
		}
		body := make([]byte, len(data)-2)
		copy(body, data[:len(data)-2])
		received := uint16(data[len(data)-2])<<8 | uint16(data[len(data)-1])
		d.Reset()
		if calculated := CalculateCRC(body); calculated != received {
			return nil, fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", calculated, received)
		}
		return body, nil

	case b == EscByte:
		d.escapeNext = true
		return nil, nil
	}

	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}
	if len(d.buffer) >= MaxFrameSize {
		d.Reset()
		return nil, fmt.Errorf("buffer overflow: frame exceeds %d bytes", MaxFrameSize)
	}
	d.buffer = append(d.buffer, b)
	return nil, nil
}

// CaptureWriter appends framed records to a capture stream
type CaptureWriter struct {
	w       io.Writer
	session string
	now     func() time.Time
}

// NewCaptureWriter starts a new capture session on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{
		w:       w,
		session: uuid.NewString(),
		now:     time.Now,
	}
}

// Session returns the capture session identifier
func (c *CaptureWriter) Session() string {
	return c.session
}

// Record writes one raw transfer
func (c *CaptureWriter) Record(characteristic string, dir Direction, raw []byte) error {
	rec := CaptureRecord{
		Session:        c.session,
		UnixNano:       c.now().UnixNano(),
		Characteristic: characteristic,
		Direction:      dir,
		Raw:            raw,
	}
	body, err := cbor.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	frame, err := EncodeFrame(body)
	if err != nil {
		return err
	}
	if _, err := c.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	return nil
}

// CaptureReader reads records back from a capture stream
type CaptureReader struct {
	r       *bufio.Reader
	decoder *FrameDecoder
}

// NewCaptureReader creates a reader over a capture stream
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{
		r:       bufio.NewReader(r),
		decoder: NewFrameDecoder(),
	}
}

// Next returns the next record, or io.EOF when the stream ends. Corrupt
// frames are returned as errors; reading may continue after them.
func (c *CaptureReader) Next() (*CaptureRecord, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		body, err := c.decoder.DecodeByte(b)
		if err != nil {
			return nil, err
		}
		if body == nil {
			continue
		}
		var rec CaptureRecord
		if err := cbor.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode capture record: %w", err)
		}
		return &rec, nil
	}
}
