// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomBytes(rng *rand.Rand, max int) []byte {
	data := make([]byte, rng.Intn(max+1))
	rng.Read(data)
	return data
}

// ============================================================
// Cipher Fuzz Tests
// ============================================================

func TestFuzz_TransformRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		key := Key(rng.Intn(256))
		payload := randomBytes(rng, 64)
		if got := Decode(Encode(payload, key), key); !bytes.Equal(got, payload) {
			t.Fatalf("round %d: key %s payload % x decoded to % x", i, key, payload, got)
		}
	}
}

func TestFuzz_RecoverKeyNeverPanics(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		payload := randomBytes(rng, 20)
		key, trials, err := RecoverKeyTrials(payload)
		if err != nil {
			if trials != 256 && len(payload) > 0 {
				t.Fatalf("round %d: failed after %d trials", i, trials)
			}
			continue
		}
		if Decode(payload, key)[0] != byte(key) {
			t.Fatalf("round %d: key %s does not satisfy the status check", i, key)
		}
	}
}

// ============================================================
// Capture Fuzz Tests
// ============================================================

func TestFuzz_FrameDecoderRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	d := NewFrameDecoder()

	for i := 0; i < rounds; i++ {
		for _, b := range randomBytes(rng, 128) {
			// Garbage must never panic; errors are expected
			_, _ = d.DecodeByte(b)
		}
	}
}

func TestFuzz_FrameRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		body := randomBytes(rng, 200)
		frame, err := EncodeFrame(body)
		if err != nil {
			t.Fatalf("round %d: EncodeFrame: %v", i, err)
		}
		d := NewFrameDecoder()
		var got []byte
		for _, b := range frame {
			out, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("round %d: DecodeByte: %v", i, err)
			}
			if out != nil {
				got = out
			}
		}
		if got == nil || !bytes.Equal(got, body) {
			t.Fatalf("round %d: body % x decoded to % x", i, body, got)
		}
	}
}
