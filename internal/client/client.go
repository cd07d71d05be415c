// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package client runs the request sequences of a machine session: key
// handshake, readiness polling, status and statistics reads.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Thermoquad/baristat/internal/gatt"
	"github.com/Thermoquad/baristat/pkg/jura"
)

// DefaultPollInterval is the delay between readiness polls
const DefaultPollInterval = 500 * time.Millisecond

// ErrNoKey is returned by requests issued before a successful Handshake
var ErrNoKey = errors.New("session key not established")

// ErrShortPayload is returned when a payload is too short to interpret
var ErrShortPayload = errors.New("payload too short")

// Options configures a Client
type Options struct {
	PollInterval time.Duration
	Logger       *log.Logger
}

// Client issues requests over a session. It is not safe for concurrent use.
type Client struct {
	sess   gatt.Session
	key    jura.Key
	hasKey bool
	poll   time.Duration
	log    *log.Logger
	stats  *jura.SessionStats
}

// New creates a client over an open session
func New(sess gatt.Session, opts Options) *Client {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		sess:  sess,
		poll:  poll,
		log:   logger,
		stats: jura.NewSessionStats(),
	}
}

// Stats returns the session counters
func (c *Client) Stats() *jura.SessionStats {
	return c.stats
}

// Key returns the session key and whether one is established
func (c *Client) Key() (jura.Key, bool) {
	return c.key, c.hasKey
}

// SetKey installs a known key, skipping the handshake
func (c *Client) SetKey(key jura.Key) {
	c.key = key
	c.hasKey = true
}

// Handshake reads the machine status and recovers the session key from it
func (c *Client) Handshake(ctx context.Context) (jura.Key, error) {
	raw, err := c.sess.Read(ctx, gatt.MachineStatus)
	c.stats.RecordRead(0, err)
	if err != nil {
		return 0, fmt.Errorf("handshake: %w", err)
	}
	c.log.Debug("Initial status", "raw", jura.FormatHex(raw))

	key, trials, err := jura.RecoverKeyTrials(raw)
	c.stats.RecordKeyTrials(trials)
	if err != nil {
		return 0, fmt.Errorf("handshake: %w", err)
	}
	c.SetKey(key)
	c.log.Debug("Recovered key", "key", key, "trials", trials)
	return key, nil
}

// WaitReady polls c by UUID until the value has a byte at index that differs
// from busy, and returns that value.
func (c *Client) WaitReady(ctx context.Context, ch gatt.Characteristic, index int, busy byte) ([]byte, error) {
	for {
		raw, err := c.sess.ReadUUID(ctx, ch)
		c.stats.RecordRead(0, err)
		if err != nil {
			return nil, fmt.Errorf("wait for %s: %w", ch.Name, err)
		}
		if len(raw) > index && raw[index] != busy {
			return raw, nil
		}
		c.stats.RecordPoll()
		c.log.Debug("Waiting", "characteristic", ch.Name, "raw", jura.FormatHex(raw))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

// MachineModel reads the model number from the manufacturer data. The number
// is carried little-endian in raw bytes 4 and 5.
func (c *Client) MachineModel(ctx context.Context) (int, error) {
	raw, err := c.WaitReady(ctx, gatt.ManufacturerData, jura.StatusBusyIndex, jura.StatusBusyMarker)
	if err != nil {
		return 0, err
	}
	if len(raw) < 6 {
		return 0, fmt.Errorf("manufacturer data %q: %w", jura.FormatHex(raw), ErrShortPayload)
	}
	model := int(raw[5])<<8 | int(raw[4])
	c.log.Debug("Manufacturer data", "raw", jura.FormatHex(raw), "model", model)
	return model, nil
}

// Status waits for the machine status and returns it deciphered
func (c *Client) Status(ctx context.Context) ([]byte, error) {
	if !c.hasKey {
		return nil, ErrNoKey
	}
	raw, err := c.WaitReady(ctx, gatt.MachineStatus, jura.StatusBusyIndex, jura.StatusBusyMarker)
	if err != nil {
		return nil, err
	}
	decoded := jura.Decode(raw, c.key)
	c.stats.BytesDecoded += uint64(len(decoded))
	c.log.Debug("Status", "decoded", jura.FormatHex(decoded))
	return decoded, nil
}

// Alerts reads the machine status and resolves its active alert bits
func (c *Client) Alerts(ctx context.Context, table jura.AlertTable, policy jura.UnknownPolicy) ([]jura.Alert, error) {
	decoded, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}
	return jura.ScanAlerts(decoded, table, policy), nil
}

// Statistics writes a statistics request, waits for the reply and reassembles it
func (c *Client) Statistics(ctx context.Context, cmd jura.StatisticsCommand) (jura.Record, error) {
	if !c.hasKey {
		return nil, ErrNoKey
	}

	err := c.sess.Write(ctx, gatt.StatisticsCommand, cmd.Encode(c.key))
	c.stats.RecordWrite(err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}

	if _, err := c.WaitReady(ctx, gatt.ReadStat, jura.StatisticsBusyIndex, jura.StatisticsBusyMarker); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}

	raw, err := c.sess.Read(ctx, gatt.StatisticsData)
	if err != nil {
		c.stats.RecordRead(0, err)
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	c.stats.RecordRead(len(raw), nil)

	record, err := cmd.Parse(raw, c.key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	c.log.Debug("Statistics", "command", cmd.Name, "raw", jura.FormatHex(raw), "fields", len(record))
	return record, nil
}
