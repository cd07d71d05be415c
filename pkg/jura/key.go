// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

// RecoverKey finds the session key from the first machine status payload of a
// connection. The machine places the key itself in the first decoded byte, so
// the lowest candidate that decodes byte 0 to its own value is the key.
func RecoverKey(firstPayload []byte) (Key, error) {
	key, _, err := RecoverKeyTrials(firstPayload)
	return key, err
}

// RecoverKeyTrials is RecoverKey that also reports how many candidates were tried.
func RecoverKeyTrials(firstPayload []byte) (Key, int, error) {
	if len(firstPayload) == 0 {
		return 0, 0, ErrKeyNotFound
	}
	for candidate := 0; candidate < 256; candidate++ {
		key := Key(candidate)
		// Only the first byte matters for the check
		if TransformByte(firstPayload[0], 0, key) == byte(key) {
			return key, candidate + 1, nil
		}
	}
	return 0, 256, ErrKeyNotFound
}
