// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gatt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"tinygo.org/x/bluetooth"
)

// MaxValueSize bounds a single characteristic read
const MaxValueSize = 512

// valueIO is the part of a discovered characteristic a session uses
type valueIO interface {
	Read(data []byte) (int, error)
	WriteWithoutResponse(p []byte) (int, error)
}

// Native talks to the machine through the host Bluetooth stack.
// Characteristics are resolved by UUID and discovery order; handles are not used.
type Native struct {
	device bluetooth.Device
	chars  map[string]valueIO
	log    *log.Logger

	mu     sync.Mutex
	closed bool
}

// DialNative scans for the machine address, connects and discovers its characteristics.
func DialNative(ctx context.Context, address string, timeout time.Duration, logger *log.Logger) (*Native, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable Bluetooth: %w", err)
	}

	logger.Info("Scanning", "device", address)
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if strings.EqualFold(result.Address.String(), address) {
				select {
				case found <- result:
				default:
				}
				a.StopScan()
			}
		})
	}()

	var result bluetooth.ScanResult
	select {
	case result = <-found:
	case err := <-scanErr:
		r, ok := scanOutcome(found)
		if !ok {
			if err == nil {
				err = errors.New("scan stopped")
			}
			return nil, fmt.Errorf("device %s not found: %w", address, err)
		}
		result = r
	case <-time.After(timeout):
		adapter.StopScan()
		return nil, fmt.Errorf("device %s not found within %s", address, timeout)
	case <-ctx.Done():
		adapter.StopScan()
		return nil, ctx.Err()
	}

	logger.Info("Connecting", "device", address, "name", result.LocalName(), "rssi", result.RSSI)
	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	n := &Native{
		device: device,
		chars:  make(map[string]valueIO),
		log:    logger,
	}
	if err := n.discover(); err != nil {
		_ = device.Disconnect()
		return nil, err
	}
	logger.Info("Connected", "characteristics", len(n.chars))
	return n, nil
}

func (n *Native) discover() error {
	svcUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return fmt.Errorf("failed to parse service UUID: %w", err)
	}
	services, err := n.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil || len(services) == 0 {
		return fmt.Errorf("machine service not found: %v", err)
	}
	var found []bluetooth.DeviceCharacteristic
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("failed to discover characteristics: %w", err)
		}
		found = append(found, chars...)
	}

	n.chars = bindCharacteristics(found)
	return nil
}

// discoveredChar is a characteristic reported by service discovery
type discoveredChar interface {
	valueIO
	UUID() bluetooth.UUID
}

// bindCharacteristics keys discovered characteristics by name
func bindCharacteristics[C discoveredChar](found []C) map[string]valueIO {
	uuids := make([]string, len(found))
	for i, c := range found {
		uuids[i] = c.UUID().String()
	}
	chars := make(map[string]valueIO)
	for name, i := range resolveCharacteristics(uuids) {
		chars[name] = found[i]
	}
	return chars
}

// scanOutcome settles a finished scan. The callback queues the match before
// stopping the scan, so a result may already be waiting when Scan returns.
func scanOutcome[T any](found <-chan T) (T, bool) {
	select {
	case r := <-found:
		return r, true
	default:
	}
	var zero T
	return zero, false
}

// resolveCharacteristics maps characteristic names to indices of the
// discovered UUID list. Discovery runs in handle order, so the k-th
// characteristic with a given UUID is the one with the k-th lowest handle
// among the known characteristics sharing that UUID.
func resolveCharacteristics(discovered []string) map[string]int {
	byUUID := make(map[string][]Characteristic)
	for _, c := range Characteristics {
		uuid := strings.ToLower(c.UUID)
		byUUID[uuid] = append(byUUID[uuid], c)
	}
	for _, list := range byUUID {
		sort.Slice(list, func(i, j int) bool { return list[i].Handle < list[j].Handle })
	}

	resolved := make(map[string]int)
	rank := make(map[string]int)
	for i, uuid := range discovered {
		uuid = strings.ToLower(uuid)
		list := byUUID[uuid]
		if rank[uuid] < len(list) {
			resolved[list[rank[uuid]].Name] = i
		}
		rank[uuid]++
	}
	return resolved
}

func (n *Native) characteristic(c Characteristic) (valueIO, error) {
	if n.closed {
		return nil, ErrClosed
	}
	dc, ok := n.chars[c.Name]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found", c)
	}
	return dc, nil
}

// Read reads a characteristic value
func (n *Native) Read(ctx context.Context, c Characteristic) ([]byte, error) {
	return n.ReadUUID(ctx, c)
}

// ReadUUID reads a characteristic value
func (n *Native) ReadUUID(ctx context.Context, c Characteristic) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dc, err := n.characteristic(c)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, MaxValueSize)
	count, err := dc.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.Name, err)
	}
	n.log.Debug("read", "characteristic", c.Name, "bytes", count)
	return buf[:count], nil
}

// Write writes a characteristic value
func (n *Native) Write(ctx context.Context, c Characteristic, data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	dc, err := n.characteristic(c)
	if err != nil {
		return err
	}
	if _, err := dc.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("write %s: %w", c.Name, err)
	}
	return nil
}

// Close disconnects from the machine
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.device.Disconnect()
}
