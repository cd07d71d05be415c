// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// WireChar is the 4-byte service-port encoding of one character.
type WireChar [WireCharSize]byte

// EncodeByte packs a character into its wire representation.
//
// The character is split into four 2-bit groups, group 0 being the most
// significant pair. Wire byte i carries group 3-i: the first bit of the pair
// in the 0x20 position and the second in the 0x04 position, on top of the
// fixed 0x5B template.
func EncodeByte(c byte) WireChar {
	var w WireChar
	for i := 0; i < WireCharSize; i++ {
		group := 3 - i
		pair := (c >> (6 - 2*group)) & 0x03
		b := byte(wireTemplate)
		if pair&0x02 != 0 {
			b |= wireBitHigh
		}
		if pair&0x01 != 0 {
			b |= wireBitLow
		}
		w[i] = b
	}
	return w
}

// EncodeChar encodes a single-character string
func EncodeChar(s string) (WireChar, error) {
	if len(s) != 1 {
		return WireChar{}, fmt.Errorf("%w: expected a single byte, got %d", ErrInvalidLength, len(s))
	}
	return EncodeByte(s[0]), nil
}

// DecodeChar reverses EncodeByte. Template bits are not checked.
func DecodeChar(data []byte) (byte, error) {
	if len(data) != WireCharSize {
		return 0, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidLength, WireCharSize, len(data))
	}
	var c byte
	for i, b := range data {
		group := 3 - i
		var pair byte
		if b&wireBitHigh != 0 {
			pair |= 0x02
		}
		if b&wireBitLow != 0 {
			pair |= 0x01
		}
		c |= pair << (6 - 2*group)
	}
	return c, nil
}

// Bytes returns the wire bytes as a slice
func (w WireChar) Bytes() []byte {
	return w[:]
}

// Valid reports whether every byte matches the template outside the payload bits
func (w WireChar) Valid() bool {
	for _, b := range w {
		if !validWireByte(b) {
			return false
		}
	}
	return true
}

func validWireByte(b byte) bool {
	return b&^(wireBitHigh|wireBitLow) == wireTemplate
}

// EncodeText encodes every byte of s, in order, for the service port.
func EncodeText(s string) []byte {
	out := make([]byte, 0, len(s)*WireCharSize)
	for i := 0; i < len(s); i++ {
		w := EncodeByte(s[i])
		out = append(out, w[:]...)
	}
	return out
}

// DecodeText decodes a complete buffer of wire characters.
func DecodeText(data []byte) (string, error) {
	if len(data)%WireCharSize != 0 {
		return "", fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidLength, len(data), WireCharSize)
	}
	var sb strings.Builder
	for i := 0; i < len(data); i += WireCharSize {
		c, err := DecodeChar(data[i : i+WireCharSize])
		if err != nil {
			return "", err
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

// FormatWireHex renders a wire character as space separated hex ("5f 5b 5b 5f").
func FormatWireHex(w WireChar) string {
	parts := make([]string, WireCharSize)
	for i, b := range w {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

// ParseWireHex parses the form produced by FormatWireHex.
func ParseWireHex(s string) (WireChar, error) {
	fields := strings.Fields(s)
	if len(fields) != WireCharSize {
		return WireChar{}, fmt.Errorf("%w: expected %d hex bytes, got %d", ErrInvalidLength, WireCharSize, len(fields))
	}
	var w WireChar
	for i, f := range fields {
		b, err := hex.DecodeString(f)
		if err != nil || len(b) != 1 {
			return WireChar{}, fmt.Errorf("invalid hex byte %q", f)
		}
		w[i] = b[0]
	}
	return w, nil
}
