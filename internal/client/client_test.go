// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/baristat/internal/gatt"
	"github.com/Thermoquad/baristat/pkg/jura"
	"github.com/Thermoquad/baristat/pkg/machinefile"
)

// ============================================================
// Fake Session
// ============================================================

// fakeSession serves queued values per characteristic. The last value of a
// queue repeats once the others are consumed.
type fakeSession struct {
	mu      sync.Mutex
	values  map[string][][]byte
	writes  map[string][][]byte
	failing map[string]error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		values:  make(map[string][][]byte),
		writes:  make(map[string][][]byte),
		failing: make(map[string]error),
	}
}

func (f *fakeSession) queue(c gatt.Characteristic, values ...[]byte) {
	f.values[c.Name] = append(f.values[c.Name], values...)
}

func (f *fakeSession) Read(ctx context.Context, c gatt.Characteristic) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[c.Name]; err != nil {
		return nil, err
	}
	q := f.values[c.Name]
	if len(q) == 0 {
		return nil, errors.New("no value for " + c.Name)
	}
	v := q[0]
	if len(q) > 1 {
		f.values[c.Name] = q[1:]
	}
	return v, nil
}

func (f *fakeSession) ReadUUID(ctx context.Context, c gatt.Characteristic) ([]byte, error) {
	return f.Read(ctx, c)
}

func (f *fakeSession) Write(ctx context.Context, c gatt.Characteristic, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[c.Name]; err != nil {
		return err
	}
	f.writes[c.Name] = append(f.writes[c.Name], data)
	return nil
}

func (f *fakeSession) Close() error { return nil }

// fakeSource resolves a single model
type fakeSource struct {
	model   machinefile.Model
	machine *machinefile.Machine
}

func (s fakeSource) Lookup(number int) (machinefile.Model, *machinefile.Machine, error) {
	if number != s.model.Number {
		return machinefile.Model{}, nil, machinefile.ErrUnknownModel
	}
	return s.model, s.machine, nil
}

const testKey = jura.Key(0x5a)

// Device values enciphered with testKey
var (
	statusRaw       = []byte{0xf9, 0x7d, 0x65}       // 5a 80 01
	percentRaw      = []byte{0xf3, 0xd7, 0xdc}       // 50 0a ff
	countsRaw       = []byte{0x13, 0xd5, 0x68, 0x82} // 3, 12
	manufacturerRaw = []byte{0x00, 0x00, 0x00, 0x00, 0x2c, 0x3a}
	statReady       = []byte{0x2a, 0x00}
	statBusy        = []byte{0x2a, 0xe1}

	// 5, 2, not tracked, 7
	productsRaw = []byte{0x13, 0xdd, 0x61, 0x88, 0x1d, 0x36, 0xe3, 0xcb, 0xd0, 0xa9, 0x8a, 0x4f}
)

func newTestClient(sess gatt.Session) *Client {
	return New(sess, Options{PollInterval: time.Millisecond})
}

// ============================================================
// Handshake Tests
// ============================================================

func TestHandshake(t *testing.T) {
	sess := newFakeSession()
	sess.queue(gatt.MachineStatus, []byte{0xf9, 0xdd, 0x83})
	c := newTestClient(sess)

	_, ok := c.Key()
	assert.False(t, ok)

	key, err := c.Handshake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	got, ok := c.Key()
	assert.True(t, ok)
	assert.Equal(t, testKey, got)
	assert.Equal(t, uint64(0x5b), c.Stats().KeyTrials)
}

func TestHandshakeNoKey(t *testing.T) {
	sess := newFakeSession()
	sess.queue(gatt.MachineStatus, []byte{0x00, 0x01})
	c := newTestClient(sess)

	_, err := c.Handshake(context.Background())
	assert.True(t, errors.Is(err, jura.ErrKeyNotFound), "expected ErrKeyNotFound, got %v", err)
	assert.Equal(t, uint64(256), c.Stats().KeyTrials)
}

func TestHandshakeTransportError(t *testing.T) {
	sess := newFakeSession()
	sess.failing[gatt.MachineStatus.Name] = gatt.ErrClosed
	c := newTestClient(sess)

	_, err := c.Handshake(context.Background())
	assert.True(t, errors.Is(err, gatt.ErrClosed))
	assert.Equal(t, uint64(1), c.Stats().TransportErrors)
}

// ============================================================
// WaitReady Tests
// ============================================================

func TestWaitReady(t *testing.T) {
	tests := []struct {
		name      string
		values    [][]byte
		wantPolls uint64
	}{
		{"ready immediately", [][]byte{statReady}, 0},
		{"busy twice", [][]byte{statBusy, statBusy, statReady}, 2},
		{"too short", [][]byte{{0x2a}, statReady}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newFakeSession()
			sess.queue(gatt.ReadStat, tt.values...)
			c := newTestClient(sess)

			got, err := c.WaitReady(context.Background(), gatt.ReadStat, jura.StatisticsBusyIndex, jura.StatisticsBusyMarker)
			require.NoError(t, err)
			assert.Equal(t, statReady, got)
			assert.Equal(t, tt.wantPolls, c.Stats().Polls)
		})
	}
}

func TestWaitReadyCancelled(t *testing.T) {
	sess := newFakeSession()
	sess.queue(gatt.ReadStat, statBusy)
	c := newTestClient(sess)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WaitReady(ctx, gatt.ReadStat, jura.StatisticsBusyIndex, jura.StatisticsBusyMarker)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "expected deadline, got %v", err)
	assert.Greater(t, c.Stats().Polls, uint64(0))
}

// ============================================================
// Request Tests
// ============================================================

func TestMachineModel(t *testing.T) {
	sess := newFakeSession()
	sess.queue(gatt.ManufacturerData, []byte{0x00, 0x00, 0x3d, 0x00, 0x2c, 0x3a}, manufacturerRaw)
	c := newTestClient(sess)

	model, err := c.MachineModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0x3a2c, model)
	assert.Equal(t, uint64(1), c.Stats().Polls)
}

func TestMachineModelShort(t *testing.T) {
	sess := newFakeSession()
	sess.queue(gatt.ManufacturerData, []byte{0x00, 0x00, 0x00})
	c := newTestClient(sess)

	_, err := c.MachineModel(context.Background())
	assert.True(t, errors.Is(err, ErrShortPayload))
}

func TestRequestsNeedKey(t *testing.T) {
	c := newTestClient(newFakeSession())

	_, err := c.Alerts(context.Background(), nil, jura.ReportUnknown)
	assert.True(t, errors.Is(err, ErrNoKey))

	_, err = c.Statistics(context.Background(), jura.ProductCounters)
	assert.True(t, errors.Is(err, ErrNoKey))
}

func TestAlerts(t *testing.T) {
	sess := newFakeSession()
	sess.queue(gatt.MachineStatus, statusRaw)
	c := newTestClient(sess)
	c.SetKey(testKey)

	table := jura.AlertTable{"insert tray", "fill water"}

	alerts, err := c.Alerts(context.Background(), table, jura.SkipUnknown)
	require.NoError(t, err)
	assert.Equal(t, []jura.Alert{{Bit: 0, Label: "insert tray", Known: true}}, alerts)

	alerts, err = c.Alerts(context.Background(), table, jura.ReportUnknown)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, jura.Alert{Bit: 15, Label: jura.UnknownAlert}, alerts[1])
}

func TestStatistics(t *testing.T) {
	sess := newFakeSession()
	sess.queue(gatt.ReadStat, statBusy, statReady)
	sess.queue(gatt.StatisticsData, productsRaw)
	c := newTestClient(sess)
	c.SetKey(testKey)

	record, err := c.Statistics(context.Background(), jura.ProductCounters)
	require.NoError(t, err)
	assert.Equal(t, jura.Record{5, 2, 0, 7}, record)

	require.Len(t, sess.writes[gatt.StatisticsCommand.Name], 1)
	assert.Equal(t, []byte{0x89, 0xdd, 0x65, 0xd9, 0xde}, sess.writes[gatt.StatisticsCommand.Name][0])
	assert.Equal(t, uint64(1), c.Stats().Writes)
}

func TestStatisticsWriteError(t *testing.T) {
	sess := newFakeSession()
	sess.failing[gatt.StatisticsCommand.Name] = gatt.ErrClosed
	c := newTestClient(sess)
	c.SetKey(testKey)

	_, err := c.Statistics(context.Background(), jura.MaintenanceCount)
	assert.True(t, errors.Is(err, gatt.ErrClosed))
	assert.Contains(t, err.Error(), "maintenance count")
}

// ============================================================
// Report Tests
// ============================================================

func newReportSession() *fakeSession {
	sess := newFakeSession()
	sess.queue(gatt.MachineStatus, statusRaw)
	sess.queue(gatt.ManufacturerData, manufacturerRaw)
	sess.queue(gatt.ReadStat, statBusy, statReady)
	sess.queue(gatt.StatisticsData, productsRaw, percentRaw, countsRaw)
	return sess
}

func testSource() fakeSource {
	return fakeSource{
		model: machinefile.Model{Number: 0x3a2c, Name: "E8", File: "EF532"},
		machine: &machinefile.Machine{
			Products: jura.ProductTable{
				{Code: 3, Name: "Coffee"},
				{Code: 1, Name: "Espresso"},
				{Code: 9, Name: "Milk"},
			},
			CleaningPercent: []string{"Cleaning", "Descaling"},
			CleaningCount:   []string{"Cleaning", "Descaling"},
			Alerts:          jura.AlertTable{"insert tray", "fill water"},
		},
	}
}

func TestReport(t *testing.T) {
	c := newTestClient(newReportSession())

	r, err := c.Report(context.Background(), testSource(), jura.SkipUnknown)
	require.NoError(t, err)

	assert.Equal(t, testKey, r.Key)
	assert.Equal(t, "E8", r.Model.Name)
	assert.Equal(t, []jura.Alert{{Bit: 0, Label: "insert tray", Known: true}}, r.Alerts)
	assert.Equal(t, uint32(5), r.Total)
	assert.Equal(t, []jura.ProductCount{
		{Code: 1, Name: "Espresso", Value: 2},
		{Code: 3, Name: "Coffee", Value: 7},
	}, r.Products)
	assert.Equal(t, []jura.Counter{{Label: "Cleaning", Value: 80}, {Label: "Descaling", Value: 10}}, r.Percent)
	assert.Equal(t, []jura.Counter{{Label: "Cleaning", Value: 3}, {Label: "Descaling", Value: 12}}, r.Counts)

	// Unlabeled alert bit 15 and product code 9 outside the record
	require.Len(t, r.Issues, 2)
	for _, issue := range r.Issues {
		assert.True(t, errors.Is(issue, jura.ErrMalformedMetadata))
	}
	assert.Equal(t, uint64(2), c.Stats().MetadataIssues)

	out := r.String()
	assert.Contains(t, out, "Machine: E8")
	assert.Contains(t, out, "Espresso")
	assert.Contains(t, out, "2 metadata issue(s)")
}

func TestReportUnknownModel(t *testing.T) {
	sess := newReportSession()
	sess.values[gatt.ManufacturerData.Name] = [][]byte{{0x00, 0x00, 0x00, 0x00, 0x01, 0x00}}
	c := newTestClient(sess)

	_, err := c.Report(context.Background(), testSource(), jura.SkipUnknown)
	assert.True(t, errors.Is(err, machinefile.ErrUnknownModel))
}
