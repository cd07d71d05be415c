// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the optional YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"github.com/lestrrat-go/strftime"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/baristat/pkg/jura"
)

// Transport backends
const (
	BackendGattTool = "gatttool"
	BackendNative   = "native"
)

// Unknown alert policies
const (
	UnknownSkip   = "skip"
	UnknownReport = "report"
)

// PasswordEnv names the environment variable holding the websocket password
const PasswordEnv = "BARISTAT_PASSWORD"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// UART configures the service UART connection
type UART struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// Config is the merged configuration of a run
type Config struct {
	Device        string        `yaml:"device"`
	Backend       string        `yaml:"backend"`
	Adapter       string        `yaml:"adapter"`
	Resources     string        `yaml:"resources"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	Timeout       time.Duration `yaml:"timeout"`
	LogLevel      string        `yaml:"log_level"`
	UnknownAlerts string        `yaml:"unknown_alerts"`

	// Capture is a strftime pattern for capture file names. Empty disables capture.
	Capture string `yaml:"capture"`

	UART UART `yaml:"uart"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Backend:       BackendGattTool,
		Resources:     "resources.zip",
		PollInterval:  500 * time.Millisecond,
		Timeout:       5 * time.Second,
		LogLevel:      "info",
		UnknownAlerts: UnknownSkip,
		UART: UART{
			Baud: 9600,
		},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var result *multierror.Error
	invalid := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	switch c.Backend {
	case BackendGattTool, BackendNative:
	default:
		invalid("backend %q (want %s or %s)", c.Backend, BackendGattTool, BackendNative)
	}
	if c.PollInterval <= 0 {
		invalid("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.Timeout <= 0 {
		invalid("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		invalid("log_level %q", c.LogLevel)
	}
	if _, err := c.UnknownPolicy(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Capture != "" {
		if _, err := strftime.New(c.Capture); err != nil {
			invalid("capture pattern %q: %v", c.Capture, err)
		}
	}
	if c.UART.Baud <= 0 {
		invalid("uart.baud must be positive, got %d", c.UART.Baud)
	}
	if c.UART.URL != "" && !strings.HasPrefix(c.UART.URL, "ws://") && !strings.HasPrefix(c.UART.URL, "wss://") {
		invalid("uart.url %q must use ws:// or wss://", c.UART.URL)
	}

	return result.ErrorOrNil()
}

// UnknownPolicy maps unknown_alerts to a correlator policy
func (c Config) UnknownPolicy() (jura.UnknownPolicy, error) {
	switch c.UnknownAlerts {
	case UnknownSkip:
		return jura.SkipUnknown, nil
	case UnknownReport:
		return jura.ReportUnknown, nil
	}
	return jura.SkipUnknown, fmt.Errorf("%w: unknown_alerts %q (want %s or %s)", ErrInvalidConfig, c.UnknownAlerts, UnknownSkip, UnknownReport)
}

// CapturePath expands the capture pattern for t. It returns "" when capture
// is disabled.
func (c Config) CapturePath(t time.Time) (string, error) {
	if c.Capture == "" {
		return "", nil
	}
	path, err := strftime.Format(c.Capture, t)
	if err != nil {
		return "", fmt.Errorf("%w: capture pattern %q: %v", ErrInvalidConfig, c.Capture, err)
	}
	return path, nil
}
