// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jura

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// IssueType represents different kinds of metadata inconsistencies
type IssueType int

const (
	IssueDuplicateProduct IssueType = iota
	IssueProductOutOfRange
	IssueUnlabeledAlert
	IssueMissingCounter
	IssueEmptyLabel
)

// MetadataError describes one mismatch between machine metadata and decoded data.
// It always matches ErrMalformedMetadata with errors.Is.
type MetadataError struct {
	Type    IssueType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *MetadataError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrMalformedMetadata
func (e *MetadataError) Unwrap() error {
	return ErrMalformedMetadata
}

// ValidateProducts checks a product table against a product statistics record.
// Returns nil when every product maps to exactly one field.
func ValidateProducts(products ProductTable, record Record) error {
	var result *multierror.Error
	seen := make(map[int]string)

	for _, p := range products {
		if prev, ok := seen[p.Code]; ok {
			result = multierror.Append(result, &MetadataError{
				Type:    IssueDuplicateProduct,
				Message: fmt.Sprintf("product code 0x%02X used by %q and %q", p.Code, prev, p.Name),
				Details: map[string]interface{}{"code": p.Code},
			})
			continue
		}
		seen[p.Code] = p.Name

		if record != nil && (p.Code < 0 || p.Code >= len(record)) {
			result = multierror.Append(result, &MetadataError{
				Type:    IssueProductOutOfRange,
				Message: fmt.Sprintf("product %q code 0x%02X outside record of %d fields", p.Name, p.Code, len(record)),
				Details: map[string]interface{}{"code": p.Code, "fields": len(record)},
			})
		}
	}

	return result.ErrorOrNil()
}

// ValidateAlerts reports every active bit of a decoded status payload that
// has no label in table.
func ValidateAlerts(decoded []byte, table AlertTable) error {
	var result *multierror.Error
	for _, bit := range ActiveBits(decoded) {
		if _, ok := table.Label(bit); !ok {
			result = multierror.Append(result, &MetadataError{
				Type:    IssueUnlabeledAlert,
				Message: fmt.Sprintf("active alert bit %d has no label", bit),
				Details: map[string]interface{}{"bit": bit, "table_size": len(table)},
			})
		}
	}
	return result.ErrorOrNil()
}

// ValidateCounters checks a maintenance label list against its record.
func ValidateCounters(record Record, labels []string) error {
	var result *multierror.Error
	for i, label := range labels {
		if label == "" {
			result = multierror.Append(result, &MetadataError{
				Type:    IssueEmptyLabel,
				Message: fmt.Sprintf("maintenance counter %d has an empty label", i),
				Details: map[string]interface{}{"index": i},
			})
		}
		if i >= len(record) {
			result = multierror.Append(result, &MetadataError{
				Type:    IssueMissingCounter,
				Message: fmt.Sprintf("maintenance counter %q (%d) missing from record of %d fields", label, i, len(record)),
				Details: map[string]interface{}{"index": i, "fields": len(record)},
			})
		}
	}
	return result.ErrorOrNil()
}
