// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FormatHex formats bytes as space separated lowercase hex ("5a 00 3d")
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

// ParseHex parses hex bytes separated by whitespace, as printed by gatttool.
// A compact string without separators ("5a003d") is accepted as well.
func ParseHex(s string) ([]byte, error) {
	fields := strings.Fields(s)
	if len(fields) == 1 && len(fields[0]) > 2 {
		compact := strings.TrimPrefix(strings.ToLower(fields[0]), "0x")
		if len(compact)%2 != 0 {
			return nil, fmt.Errorf("hex string must contain an even number of digits, got %d", len(compact))
		}
		data, err := hex.DecodeString(compact)
		if err != nil {
			return nil, fmt.Errorf("decode hex: %w", err)
		}
		return data, nil
	}

	data := make([]byte, 0, len(fields))
	for _, f := range fields {
		b, err := hex.DecodeString(f)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("invalid hex byte %q", f)
		}
		data = append(data, b[0])
	}
	return data, nil
}

// FormatAlerts formats active alerts, one per line
func FormatAlerts(alerts []Alert) string {
	if len(alerts) == 0 {
		return "  (no active alerts)\n"
	}
	var sb strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&sb, "  bit %3d: %s\n", a.Bit, a.Label)
	}
	return sb.String()
}

// FormatProducts formats product counters with the record total first
func FormatProducts(total uint32, counts []ProductCount) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  %-28s %8d\n", "Total", total)
	for _, c := range counts {
		fmt.Fprintf(&sb, "  %-28s %8d  (code 0x%02X)\n", c.Name, c.Value, c.Code)
	}
	return sb.String()
}

// FormatCounters formats maintenance counters. The unit is appended to each value.
func FormatCounters(counters []Counter, unit string) string {
	if len(counters) == 0 {
		return "  (no counters)\n"
	}
	var sb strings.Builder
	for _, c := range counters {
		fmt.Fprintf(&sb, "  %-28s %8d%s\n", c.Label, c.Value, unit)
	}
	return sb.String()
}
