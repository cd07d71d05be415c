// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gatt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Thermoquad/baristat/pkg/jura"
)

// Recorder mirrors every successful transfer of a session into a capture
type Recorder struct {
	Session
	capture *jura.CaptureWriter
}

// NewRecorder wraps a session so raw reads and writes are captured
func NewRecorder(s Session, w *jura.CaptureWriter) *Recorder {
	return &Recorder{Session: s, capture: w}
}

// Read reads by handle and records the raw value
func (r *Recorder) Read(ctx context.Context, c Characteristic) ([]byte, error) {
	data, err := r.Session.Read(ctx, c)
	if err != nil {
		return nil, err
	}
	return data, r.capture.Record(c.Name, jura.DirectionRead, data)
}

// ReadUUID reads by UUID and records the raw value
func (r *Recorder) ReadUUID(ctx context.Context, c Characteristic) ([]byte, error) {
	data, err := r.Session.ReadUUID(ctx, c)
	if err != nil {
		return nil, err
	}
	return data, r.capture.Record(c.Name, jura.DirectionRead, data)
}

// Write writes and records the raw value
func (r *Recorder) Write(ctx context.Context, c Characteristic, data []byte) error {
	if err := r.Session.Write(ctx, c, data); err != nil {
		return err
	}
	return r.capture.Record(c.Name, jura.DirectionWrite, data)
}

// ErrReplayExhausted is returned when a replay has no further matching record
var ErrReplayExhausted = errors.New("capture has no further transfer")

// Replay serves a recorded capture back as a session. Each request consumes
// the next record of the same characteristic and direction.
type Replay struct {
	records []*jura.CaptureRecord
	used    []bool
}

// NewReplay reads every record of a capture stream
func NewReplay(r io.Reader) (*Replay, error) {
	cr := jura.NewCaptureReader(r)
	rp := &Replay{}
	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rp.records = append(rp.records, rec)
	}
	rp.used = make([]bool, len(rp.records))
	return rp, nil
}

// Records returns the capture contents
func (rp *Replay) Records() []*jura.CaptureRecord {
	return rp.records
}

func (rp *Replay) next(name string, dir jura.Direction) (*jura.CaptureRecord, error) {
	for i, rec := range rp.records {
		if rp.used[i] || rec.Characteristic != name || rec.Direction != dir {
			continue
		}
		rp.used[i] = true
		return rec, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrReplayExhausted, dir, name)
}

// Read returns the next recorded read of c
func (rp *Replay) Read(ctx context.Context, c Characteristic) ([]byte, error) {
	rec, err := rp.next(c.Name, jura.DirectionRead)
	if err != nil {
		return nil, err
	}
	return rec.Raw, nil
}

// ReadUUID returns the next recorded read of c
func (rp *Replay) ReadUUID(ctx context.Context, c Characteristic) ([]byte, error) {
	return rp.Read(ctx, c)
}

// Write consumes the next recorded write of c
func (rp *Replay) Write(ctx context.Context, c Characteristic, data []byte) error {
	_, err := rp.next(c.Name, jura.DirectionWrite)
	return err
}

// Close implements Session
func (rp *Replay) Close() error {
	return nil
}
