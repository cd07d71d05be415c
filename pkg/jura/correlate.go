// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import "sort"

// AlertTable maps alert bit indices to labels. Empty strings are unused bits.
type AlertTable []string

// Label returns the label for a bit, if the table has one
func (t AlertTable) Label(bit int) (string, bool) {
	if bit < 0 || bit >= len(t) || t[bit] == "" {
		return "", false
	}
	return t[bit], true
}

// Product is one entry of a machine's product table
type Product struct {
	Code int
	Name string
}

// ProductTable lists the products a machine can brew, keyed by code.
type ProductTable []Product

// UnknownPolicy selects how active bits without a label are reported
type UnknownPolicy int

const (
	SkipUnknown UnknownPolicy = iota
	ReportUnknown
)

// Alert is an active alert bit
type Alert struct {
	Bit   int
	Label string
	Known bool
}

// Counter pairs a maintenance label with its value
type Counter struct {
	Label string
	Value uint32
}

// ProductCount pairs a product with its brew counter
type ProductCount struct {
	Code  int
	Name  string
	Value uint32
}

// ActiveBits returns the set bit indices of a decoded status payload. The
// first byte is reserved; bit i lives in byte 1+i/8, most significant first.
func ActiveBits(decoded []byte) []int {
	if len(decoded) <= StatusReservedBytes {
		return nil
	}
	var bits []int
	total := (len(decoded) - StatusReservedBytes) * 8
	for i := 0; i < total; i++ {
		offset := StatusReservedBytes + i>>3
		shift := 7 - (i & 0x07)
		if (decoded[offset]>>shift)&0x01 == 1 {
			bits = append(bits, i)
		}
	}
	return bits
}

// ScanAlerts resolves the active bits of a status payload against table.
func ScanAlerts(decoded []byte, table AlertTable, policy UnknownPolicy) []Alert {
	var alerts []Alert
	for _, bit := range ActiveBits(decoded) {
		label, ok := table.Label(bit)
		if !ok {
			if policy == SkipUnknown {
				continue
			}
			label = UnknownAlert
		}
		alerts = append(alerts, Alert{Bit: bit, Label: label, Known: ok})
	}
	return alerts
}

// CorrelateCounters pairs record[i] with labels[i]. Extra entries on either
// side are ignored.
func CorrelateCounters(record Record, labels []string) []Counter {
	n := len(labels)
	if len(record) < n {
		n = len(record)
	}
	counters := make([]Counter, n)
	for i := 0; i < n; i++ {
		counters[i] = Counter{Label: labels[i], Value: record[i]}
	}
	return counters
}

// CorrelateProducts reports the counter of every product whose code is an
// index into record, ordered by code.
func CorrelateProducts(record Record, products ProductTable) []ProductCount {
	var counts []ProductCount
	for _, p := range products {
		if p.Code < 0 || p.Code >= len(record) {
			continue
		}
		counts = append(counts, ProductCount{Code: p.Code, Name: p.Name, Value: record[p.Code]})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Code < counts[j].Code
	})
	return counts
}
