// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import "fmt"

// MaxLineLength bounds a single service-port reply line
const MaxLineLength = 256

// TextDecoder reassembles service-port replies from a byte stream.
// Wire bytes are grouped by four, decoded, and accumulated until "\r\n".
type TextDecoder struct {
	block      [WireCharSize]byte
	blockIndex int
	line       []byte
}

// NewTextDecoder creates a new service-port line decoder
func NewTextDecoder() *TextDecoder {
	return &TextDecoder{
		line: make([]byte, 0, MaxLineLength),
	}
}

// Reset drops any partial character or line
func (d *TextDecoder) Reset() {
	d.blockIndex = 0
	d.line = d.line[:0]
}

// DecodeByte feeds one wire byte. It returns a completed line (without the
// trailing CR LF) and true once the terminator has been decoded.
//
// A byte that does not match the wire template is dropped on its own and
// reported; the partial character and line are kept, so a stray byte on the
// line does not shift the alignment of the characters after it.
func (d *TextDecoder) DecodeByte(b byte) (string, bool, error) {
	if !validWireByte(b) {
		return "", false, fmt.Errorf("wire byte %02x does not match template", b)
	}

	d.block[d.blockIndex] = b
	d.blockIndex++
	if d.blockIndex < WireCharSize {
		return "", false, nil
	}
	d.blockIndex = 0

	w := WireChar(d.block)
	c, _ := DecodeChar(w[:])

	if c == '\n' && len(d.line) > 0 && d.line[len(d.line)-1] == '\r' {
		line := string(d.line[:len(d.line)-1])
		d.line = d.line[:0]
		return line, true, nil
	}

	if len(d.line) >= MaxLineLength {
		d.Reset()
		return "", false, fmt.Errorf("line exceeds %d characters", MaxLineLength)
	}
	d.line = append(d.line, c)
	return "", false, nil
}
