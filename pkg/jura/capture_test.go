// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Capture Framing Tests
// ============================================================

func TestCalculateCRC_CheckValue(t *testing.T) {
	// Standard CRC-16/CCITT-FALSE check value
	if crc := CalculateCRC([]byte("123456789")); crc != 0x29B1 {
		t.Errorf("CRC mismatch: expected 0x29B1, got 0x%04X", crc)
	}
}

func TestEncodeFrame_StuffsSpecialBytes(t *testing.T) {
	body := []byte{StartByte, EndByte, EscByte, 0x01}
	frame, err := EncodeFrame(body)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if frame[0] != StartByte || frame[len(frame)-1] != EndByte {
		t.Fatalf("frame not delimited: % x", frame)
	}
	for _, b := range frame[1 : len(frame)-1] {
		if b == StartByte || b == EndByte {
			t.Fatalf("unescaped framing byte inside frame: % x", frame)
		}
	}

	d := NewFrameDecoder()
	var got []byte
	for _, b := range frame {
		out, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte: %v", err)
		}
		if out != nil {
			got = out
		}
	}
	if !bytes.Equal(got, body) {
		t.Errorf("decoded body = % x, want % x", got, body)
	}
}

func TestFrameDecoder_CRCMismatch(t *testing.T) {
	frame, _ := EncodeFrame([]byte{0x01, 0x02, 0x03})
	frame[1] ^= 0x01

	d := NewFrameDecoder()
	var gotErr error
	for _, b := range frame {
		if _, err := d.DecodeByte(b); err != nil {
			gotErr = err
		}
	}
	if gotErr == nil {
		t.Error("expected CRC mismatch error")
	}
}

func TestFrameDecoder_IgnoresNoiseBeforeStart(t *testing.T) {
	frame, _ := EncodeFrame([]byte{0xAA})
	stream := append([]byte{0x00, 0x55, EndByte}, frame...)

	d := NewFrameDecoder()
	var got []byte
	for _, b := range stream {
		out, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte: %v", err)
		}
		if out != nil {
			got = out
		}
	}
	if !bytes.Equal(got, []byte{0xAA}) {
		t.Errorf("decoded body = % x", got)
	}
}

func TestFrameDecoder_TooShort(t *testing.T) {
	d := NewFrameDecoder()
	d.DecodeByte(StartByte)
	d.DecodeByte(0x01)
	if _, err := d.DecodeByte(EndByte); err == nil {
		t.Error("expected error for frame without CRC")
	}
}

// ============================================================
// Capture Record Tests
// ============================================================

func TestCapture_WriteRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	fixed := time.Unix(1700000000, 123)
	w.now = func() time.Time { return fixed }

	if _, err := uuid.Parse(w.Session()); err != nil {
		t.Fatalf("session id is not a UUID: %v", err)
	}

	status := []byte{0xF9, 0xDD, 0x83, EndByte, EscByte}
	if err := w.Record("machine_status", DirectionRead, status); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record("statistics_command", DirectionWrite, ProductCounters.Encode(0x5A)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	r := NewCaptureReader(&buf)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Characteristic != "machine_status" || first.Direction != DirectionRead {
		t.Errorf("first record = %+v", first)
	}
	if !bytes.Equal(first.Raw, status) {
		t.Errorf("raw = % x, want % x", first.Raw, status)
	}
	if !first.Time().Equal(fixed) || first.Session != w.Session() {
		t.Errorf("metadata = %v %s", first.Time(), first.Session)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second.Direction != DirectionWrite || second.Direction.String() != "write" {
		t.Errorf("second record direction = %v", second.Direction)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
