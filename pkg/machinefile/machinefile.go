// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package machinefile reads the per-model XML machine files and the resource
// archive that indexes them. A machine file supplies the product table,
// maintenance counter labels and alert table used to interpret decoded data.
package machinefile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Thermoquad/baristat/pkg/jura"
)

// Namespace of every element in a machine file
const Namespace = "http://www.top-tronic.com"

// Statistics banks holding the maintenance counter labels
const (
	BankCleaningCount   = "@TG:43"
	BankCleaningPercent = "@TG:C0"
)

// ErrNoAlerts is returned when a machine file defines no ALERT elements.
var ErrNoAlerts = errors.New("machine file has no alerts")

// Machine is the metadata extracted from one machine file
type Machine struct {
	Products        jura.ProductTable
	CleaningCount   []string
	CleaningPercent []string
	Alerts          jura.AlertTable
}

type pendingAlert struct {
	bit  int
	name string
}

// Parse reads a machine file. Elements are matched by local name within
// Namespace regardless of nesting depth; TEXTITEMs count only as direct
// children of a BANK.
func Parse(r io.Reader) (*Machine, error) {
	dec := xml.NewDecoder(r)
	m := &Machine{}

	var (
		depth     int
		bankDepth = -1
		bank      string
		alerts    []pendingAlert
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse machine file: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if el.Name.Space != Namespace {
				continue
			}
			switch el.Name.Local {
			case "PRODUCT":
				p, err := parseProduct(el)
				if err != nil {
					return nil, err
				}
				m.Products = append(m.Products, p)
			case "BANK":
				bank = attr(el, "Command")
				bankDepth = depth
			case "TEXTITEM":
				if depth != bankDepth+1 {
					continue
				}
				switch bank {
				case BankCleaningCount:
					m.CleaningCount = append(m.CleaningCount, attr(el, "Type"))
				case BankCleaningPercent:
					m.CleaningPercent = append(m.CleaningPercent, attr(el, "Type"))
				}
			case "ALERT":
				a, err := parseAlert(el)
				if err != nil {
					return nil, err
				}
				alerts = append(alerts, a)
			}

		case xml.EndElement:
			if depth == bankDepth {
				bank = ""
				bankDepth = -1
			}
			depth--
		}
	}

	m.Alerts = buildAlertTable(alerts)
	return m, nil
}

// buildAlertTable sizes the table to the highest bit and leaves gaps empty
func buildAlertTable(alerts []pendingAlert) jura.AlertTable {
	if len(alerts) == 0 {
		return nil
	}
	max := 0
	for _, a := range alerts {
		if a.bit > max {
			max = a.bit
		}
	}
	table := make(jura.AlertTable, max+1)
	for _, a := range alerts {
		table[a.bit] = a.name
	}
	return table
}

func parseProduct(el xml.StartElement) (jura.Product, error) {
	raw := attr(el, "Code")
	code, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(raw), "0x"), 16, 32)
	if err != nil {
		return jura.Product{}, fmt.Errorf("invalid product code %q: %w", raw, err)
	}
	return jura.Product{Code: int(code), Name: attr(el, "Name")}, nil
}

func parseAlert(el xml.StartElement) (pendingAlert, error) {
	raw := attr(el, "Bit")
	bit, err := strconv.Atoi(raw)
	if err != nil || bit < 0 {
		return pendingAlert{}, fmt.Errorf("invalid alert bit %q", raw)
	}
	return pendingAlert{bit: bit, name: attr(el, "Name")}, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Validate reports tables a machine file must provide
func (m *Machine) Validate() error {
	if len(m.Alerts) == 0 {
		return ErrNoAlerts
	}
	return jura.ValidateProducts(m.Products, nil)
}
