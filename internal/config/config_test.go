// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/baristat/pkg/jura"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "baristat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
device: "F0:12:34:56:78:9A"
backend: native
poll_interval: 250ms
unknown_alerts: report
capture: "captures/%Y%m%d-%H%M%S.cap"
uart:
  url: wss://bridge.local/uart
  username: service
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "F0:12:34:56:78:9A", cfg.Device)
	assert.Equal(t, BackendNative, cfg.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "wss://bridge.local/uart", cfg.UART.URL)

	// Unset keys keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "resources.zip", cfg.Resources)
	assert.Equal(t, 9600, cfg.UART.Baud)

	policy, err := cfg.UnknownPolicy()
	require.NoError(t, err)
	assert.Equal(t, jura.ReportUnknown, policy)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Load(writeConfig(t, "poll_interval: [1, 2]\n"))
	assert.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Backend = "bluez"
	cfg.PollInterval = 0
	cfg.LogLevel = "loud"
	cfg.UnknownAlerts = "maybe"
	cfg.UART.URL = "http://bridge"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 5)
}

func TestCapturePath(t *testing.T) {
	at := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	cfg := Default()
	path, err := cfg.CapturePath(at)
	require.NoError(t, err)
	assert.Empty(t, path)

	cfg.Capture = "captures/%Y%m%d-%H%M%S.cap"
	path, err = cfg.CapturePath(at)
	require.NoError(t, err)
	assert.Equal(t, "captures/20250314-150926.cap", path)
}
