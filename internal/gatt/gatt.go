// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gatt provides the Bluetooth LE attribute sessions used to talk to
// the machine: an interactive gatttool driver and a native BLE stack.
package gatt

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ServiceUUID is the primary service carrying the machine characteristics
const ServiceUUID = "5a401523-ab2e-2548-c435-08c300000710"

// Characteristic identifies a GATT characteristic by UUID and handle
type Characteristic struct {
	Name   string
	UUID   string
	Handle uint16
}

// HandleString formats the handle as gatttool expects it ("0x000b")
func (c Characteristic) HandleString() string {
	return fmt.Sprintf("0x%04x", c.Handle)
}

func (c Characteristic) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.HandleString())
}

// Machine characteristics
var (
	MachineStatus     = Characteristic{"machine_status", "5a401524-ab2e-2548-c435-08c300000710", 0x000b}
	BaristaMode       = Characteristic{"barista_mode", "5a401530-ab2e-2548-c435-08c300000710", 0x0017}
	ProductProgress   = Characteristic{"product_progress", "5a401527-ab2e-2548-c435-08c300000710", 0x001a}
	Heartbeat         = Characteristic{"heartbeat", "5a401529-ab2e-2548-c435-08c300000710", 0x0011}
	HeartbeatRead     = Characteristic{"heartbeat_read", "5a401538-ab2e-2548-c435-08c300000710", 0x0032}
	StartProduct      = Characteristic{"start_product", "5a401525-ab2e-2548-c435-08c300000710", 0x000e}
	StatisticsCommand = Characteristic{"statistics_command", "5a401534-ab2e-2548-c435-08c300000710", 0x0026}
	StatisticsData    = Characteristic{"statistics_data", "5a401534-ab2e-2548-c435-08c300000710", 0x0029}
	UARTTx            = Characteristic{"uart_tx", "5a401625-ab2e-2548-c435-08c300000710", 0x0039}
	UARTRx            = Characteristic{"uart_rx", "5a401624-ab2e-2548-c435-08c300000710", 0x0036}
	ReadStat          = Characteristic{"read_stat", "5a401533-ab2e-2548-c435-08c300000710", 0x000a}
	ManufacturerData  = Characteristic{"manufacturer_data", "5a401531-ab2e-2548-c435-08c300000710", 0x001d}
)

// Characteristics lists every known characteristic
var Characteristics = []Characteristic{
	MachineStatus, BaristaMode, ProductProgress, Heartbeat, HeartbeatRead, StartProduct,
	StatisticsCommand, StatisticsData, UARTTx, UARTRx, ReadStat, ManufacturerData,
}

// Lookup finds a characteristic by name
func Lookup(name string) (Characteristic, bool) {
	for _, c := range Characteristics {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Characteristic{}, false
}

// ErrClosed is returned by operations on a closed session
var ErrClosed = errors.New("gatt session closed")

// Session is a connected attribute session with the machine
type Session interface {
	// Read reads a characteristic by handle
	Read(ctx context.Context, c Characteristic) ([]byte, error)
	// ReadUUID reads a characteristic by UUID
	ReadUUID(ctx context.Context, c Characteristic) ([]byte, error)
	// Write writes a characteristic with response
	Write(ctx context.Context, c Characteristic, data []byte) error
	Close() error
}
