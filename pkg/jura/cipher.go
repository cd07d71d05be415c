// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import "fmt"

// Key is the one-byte session key negotiated per Bluetooth connection.
type Key byte

// High returns bits 4-7 of the key
func (k Key) High() int {
	return int(k >> 4)
}

// Low returns bits 0-3 of the key
func (k Key) Low() int {
	return int(k & 0x0F)
}

// String formats the key as two hex digits
func (k Key) String() string {
	return fmt.Sprintf("%02x", byte(k))
}

// mod256 reduces x into 0..255, wrapping negative values.
func mod256(x int) int {
	x %= 256
	if x < 0 {
		x += 256
	}
	return x
}

// shuffle transforms a single nibble at the given nibble position.
func shuffle(nibble, position, keyHigh, keyLow int) int {
	aux := mod256(position >> 4)
	t1 := int(table1[mod256(nibble+position+keyHigh)%16])
	t2 := int(table2[mod256(t1+keyLow+aux-position-keyHigh)%16])
	t3 := int(table1[mod256(t2+keyHigh+position-keyLow-aux)%16])
	return mod256(t3-position-keyHigh) % 16
}

// TransformByte applies the cipher to one byte whose high nibble sits at
// nibble position `position` and low nibble at position+1.
func TransformByte(b byte, position int, key Key) byte {
	high := shuffle(int(b>>4), position, key.High(), key.Low())
	low := shuffle(int(b&0x0F), position+1, key.High(), key.Low())
	return byte(high<<4 | low)
}

// Transform applies the cipher to a whole payload. Positions restart at zero
// for every call. The same transform is used in both directions.
func Transform(payload []byte, key Key) []byte {
	result := make([]byte, len(payload))
	for i, b := range payload {
		result[i] = TransformByte(b, 2*i, key)
	}
	return result
}

// Decode deciphers a payload read from the machine
func Decode(payload []byte, key Key) []byte {
	return Transform(payload, key)
}

// Encode enciphers a payload before it is written to the machine
func Encode(payload []byte, key Key) []byte {
	return Transform(payload, key)
}
