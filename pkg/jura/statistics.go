// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import "fmt"

// FieldWidth is the number of decoded bytes per statistics field
type FieldWidth int

// Record is a reassembled statistics payload. Field 0 holds the total.
type Record []uint32

// Reassemble splits decoded statistics bytes into big-endian fields of the
// given width. A trailing partial field is dropped and NotTracked values are
// reported as zero.
func Reassemble(decoded []byte, width FieldWidth) (Record, error) {
	switch width {
	case WidthPercent, WidthCount, WidthProduct:
	default:
		return nil, fmt.Errorf("%w: %d (want 1, 2 or 3)", ErrInvalidFieldWidth, width)
	}

	w := int(width)
	record := make(Record, 0, len(decoded)/w)
	for i := 0; i+w <= len(decoded); i += w {
		var v uint32
		for _, b := range decoded[i : i+w] {
			v = v<<8 | uint32(b)
		}
		if v == NotTracked {
			v = 0
		}
		record = append(record, v)
	}
	return record, nil
}

// Total returns field 0, or zero for an empty record
func (r Record) Total() uint32 {
	if len(r) == 0 {
		return 0
	}
	return r[0]
}
