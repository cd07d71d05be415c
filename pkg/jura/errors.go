// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import "errors"

var (
	// ErrKeyNotFound is returned when no candidate key satisfies the status invariant.
	ErrKeyNotFound = errors.New("session key not found")

	// ErrInvalidLength is returned by the character codec for wrongly sized input.
	ErrInvalidLength = errors.New("invalid length")

	// ErrInvalidFieldWidth is returned by Reassemble for unsupported widths.
	ErrInvalidFieldWidth = errors.New("invalid field width")

	// ErrMalformedMetadata marks machine metadata that disagrees with decoded data.
	ErrMalformedMetadata = errors.New("malformed metadata")
)
