// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package machinefile

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Archive layout
const (
	IndexFile  = "JOE_MACHINES.TXT"
	MachineDir = "machinefiles/"
)

// ErrUnknownModel is returned when the index has no entry for a model number.
var ErrUnknownModel = errors.New("unknown machine model")

// Model is an entry of the machine index
type Model struct {
	Number int
	Name   string
	File   string
}

// Resources gives access to a resource archive
type Resources struct {
	zr     *zip.Reader
	closer io.Closer
}

// OpenResources opens a resource archive from disk
func OpenResources(path string) (*Resources, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open resources %s: %w", path, err)
	}
	return &Resources{zr: &rc.Reader, closer: rc}, nil
}

// NewResources wraps an in-memory archive
func NewResources(r io.ReaderAt, size int64) (*Resources, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read resources: %w", err)
	}
	return &Resources{zr: zr}, nil
}

// Close releases the archive
func (r *Resources) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// FindModel looks a model number up in the index. Lines are
// "number;name;file;..." and the number must match exactly.
func (r *Resources) FindModel(number int) (Model, error) {
	f, err := r.zr.Open(IndexFile)
	if err != nil {
		return Model{}, fmt.Errorf("failed to open %s: %w", IndexFile, err)
	}
	defer f.Close()

	want := strconv.Itoa(number)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), ";")
		if len(fields) < 3 || fields[0] != want {
			continue
		}
		return Model{Number: number, Name: fields[1], File: fields[2]}, nil
	}
	if err := scanner.Err(); err != nil {
		return Model{}, fmt.Errorf("failed to read %s: %w", IndexFile, err)
	}
	return Model{}, fmt.Errorf("%w: %d", ErrUnknownModel, number)
}

// Machine parses the machine file of a model
func (r *Resources) Machine(model Model) (*Machine, error) {
	f, err := r.zr.Open(MachineDir + model.File + ".xml")
	if err != nil {
		return nil, fmt.Errorf("failed to open machine file for %s: %w", model.Name, err)
	}
	defer f.Close()
	return Parse(f)
}

// Lookup resolves a model number to its index entry and machine file
func (r *Resources) Lookup(number int) (Model, *Machine, error) {
	model, err := r.FindModel(number)
	if err != nil {
		return Model{}, nil, err
	}
	m, err := r.Machine(model)
	if err != nil {
		return model, nil, err
	}
	return model, m, nil
}
