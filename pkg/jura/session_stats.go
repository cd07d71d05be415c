// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import (
	"fmt"
	"time"
)

// SessionStats tracks traffic and error counters for one connection
type SessionStats struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Reads           uint64
	Writes          uint64
	Polls           uint64
	BytesDecoded    uint64
	TransportErrors uint64
	MetadataIssues  uint64
	KeyTrials       uint64

	// Rates (calculated)
	ReadRate  float64 // reads/sec
	ErrorRate float64 // errors/sec
}

// NewSessionStats creates a new statistics tracker
func NewSessionStats() *SessionStats {
	now := time.Now()
	return &SessionStats{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordRead counts a read and the bytes decoded from it
func (s *SessionStats) RecordRead(decodedBytes int, err error) {
	s.Reads++
	if err != nil {
		s.TransportErrors++
	} else {
		s.BytesDecoded += uint64(decodedBytes)
	}
	s.LastUpdateTime = time.Now()
}

// RecordWrite counts a write
func (s *SessionStats) RecordWrite(err error) {
	s.Writes++
	if err != nil {
		s.TransportErrors++
	}
	s.LastUpdateTime = time.Now()
}

// RecordPoll counts a readiness poll that found the machine busy
func (s *SessionStats) RecordPoll() {
	s.Polls++
	s.LastUpdateTime = time.Now()
}

// RecordKeyTrials counts key recovery candidates
func (s *SessionStats) RecordKeyTrials(trials int) {
	s.KeyTrials += uint64(trials)
}

// RecordMetadataIssues counts recoverable metadata issues
func (s *SessionStats) RecordMetadataIssues(n int) {
	s.MetadataIssues += uint64(n)
}

// CalculateRates calculates read and error rates
func (s *SessionStats) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ReadRate = float64(s.Reads) / elapsed
		s.ErrorRate = float64(s.TransportErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *SessionStats) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Session (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Reads:           %8d\n", s.Reads)
	result += fmt.Sprintf("Writes:          %8d\n", s.Writes)
	result += fmt.Sprintf("Busy Polls:      %8d\n", s.Polls)
	result += fmt.Sprintf("Bytes Decoded:   %8d\n", s.BytesDecoded)
	if s.KeyTrials > 0 {
		result += fmt.Sprintf("Key Trials:      %8d\n", s.KeyTrials)
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d\n", s.TransportErrors)
	}
	if s.MetadataIssues > 0 {
		result += fmt.Sprintf("Metadata Issues: %8d\n", s.MetadataIssues)
	}
	result += fmt.Sprintf("Read Rate:       %8.1f reads/sec\n", s.ReadRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "==============================\n"

	return result
}

