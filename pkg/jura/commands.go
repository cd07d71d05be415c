// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

// StatisticsCommand is a request written to the statistics command
// characteristic. The reply is reassembled with Width.
type StatisticsCommand struct {
	Name    string
	Payload []byte
	Width   FieldWidth
}

// Known statistics requests
var (
	// ProductCounters returns the total followed by one counter per product code.
	ProductCounters = StatisticsCommand{
		Name:    "product counters",
		Payload: []byte{0x2A, 0x00, 0x01, 0xFF, 0xFF},
		Width:   WidthProduct,
	}

	// MaintenancePercent returns one byte per maintenance task (@TG:C0 bank).
	MaintenancePercent = StatisticsCommand{
		Name:    "maintenance percent",
		Payload: []byte{0x2A, 0x00, 0x08, 0x01, 0x00},
		Width:   WidthPercent,
	}

	// MaintenanceCount returns a 16-bit counter per maintenance task (@TG:43 bank).
	MaintenanceCount = StatisticsCommand{
		Name:    "maintenance count",
		Payload: []byte{0x2A, 0x00, 0x04, 0x01, 0x00},
		Width:   WidthCount,
	}
)

// Encode enciphers the command payload for a session
func (c StatisticsCommand) Encode(key Key) []byte {
	return Encode(c.Payload, key)
}

// Parse deciphers and reassembles a statistics reply
func (c StatisticsCommand) Parse(raw []byte, key Key) (Record, error) {
	return Reassemble(Decode(raw, key), c.Width)
}
