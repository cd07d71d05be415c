// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package jura implements the codec engine of the Jura coffee machine
// Bluetooth and service-port protocols.
//
// Every payload exchanged over Bluetooth is obfuscated with a keyed nibble
// substitution cipher. The key is a single byte chosen by the machine per
// connection and recovered by brute force from the first status read. Text
// sent over the service UART uses an unrelated 4-byte-per-character bit
// packing. This package provides both codecs plus the helpers that turn
// decoded statistics and status payloads into counters and alerts.
package jura

// Substitution tables used by the nibble cipher. Both are permutations of 0..15.
var (
	table1 = [16]byte{14, 4, 3, 2, 1, 13, 8, 11, 6, 15, 12, 7, 10, 5, 0, 9}
	table2 = [16]byte{10, 6, 13, 12, 14, 11, 1, 9, 15, 7, 0, 5, 3, 2, 4, 8}
)

// Character codec layout
const (
	WireCharSize = 4

	// wireTemplate is the fixed bit pattern 01011011 carried by every wire byte.
	wireTemplate = 0x5B

	// Payload bit masks (MSB-first positions 2 and 5)
	wireBitHigh = 0x20
	wireBitLow  = 0x04
)

// NotTracked is the counter value a machine reports for products it does not count.
const NotTracked = 0xFFFF

// Statistics field widths
const (
	WidthPercent FieldWidth = 1
	WidthCount   FieldWidth = 2
	WidthProduct FieldWidth = 3
)

// Status payload layout
const (
	StatusReservedBytes = 1
	StatusBusyIndex     = 2
	StatusBusyMarker    = 0x3D

	StatisticsBusyIndex  = 1
	StatisticsBusyMarker = 0xE1
)

// UnknownAlert is the label reported for active bits missing from an AlertTable.
const UnknownAlert = "unknown"
