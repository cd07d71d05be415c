// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Thermoquad/baristat/internal/client"
	"github.com/Thermoquad/baristat/internal/config"
	"github.com/Thermoquad/baristat/internal/gatt"
	"github.com/Thermoquad/baristat/pkg/jura"
)

// captureSession closes the capture file together with the session
type captureSession struct {
	*gatt.Recorder
	file *os.File
}

func (c *captureSession) Close() error {
	return errors.Join(c.Recorder.Close(), c.file.Close())
}

// dialSession connects to the configured device over the configured backend
func dialSession(ctx context.Context) (gatt.Session, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("--device must be specified")
	}

	if cfg.Backend == config.BackendNative {
		sess, err := gatt.DialNative(ctx, cfg.Device, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	sess, err := gatt.DialGattTool(ctx, cfg.Device, gatt.GattToolOptions{
		Adapter: cfg.Adapter,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// openSession dials the device and mirrors its traffic into a capture file
// when capture is enabled.
func openSession(ctx context.Context) (gatt.Session, error) {
	sess, err := dialSession(ctx)
	if err != nil {
		return nil, err
	}

	path, err := cfg.CapturePath(time.Now())
	if err != nil {
		sess.Close()
		return nil, err
	}
	if path == "" {
		return sess, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			sess.Close()
			return nil, fmt.Errorf("failed to create capture directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}

	w := jura.NewCaptureWriter(f)
	logger.Info("Capturing", "file", path, "session", w.Session())
	return &captureSession{Recorder: gatt.NewRecorder(sess, w), file: f}, nil
}

// newClient wraps a session with the configured poll interval and logger
func newClient(sess gatt.Session) *client.Client {
	return client.New(sess, client.Options{
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
}

// unknownPolicy returns the validated alert policy
func unknownPolicy() jura.UnknownPolicy {
	policy, _ := cfg.UnknownPolicy()
	return policy
}
