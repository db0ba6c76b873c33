// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, 200*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, 20, cfg.Controller.IdleCycles)
	assert.Equal(t, 200*time.Millisecond, cfg.Controller.InitBackoff)
	assert.Equal(t, "0.0.0.0:5000", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WaitTimeout)
	assert.InDelta(t, 10.0, cfg.HTTP.CommandRate, 0.001)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File.Filename)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial:
  port: /dev/ttyS1
controller:
  idleCycles: 40
http:
  addr: 127.0.0.1:8000
`), 0o644))

	t.Setenv("RXBRIDGE_HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS1", cfg.Serial.Port)
	assert.Equal(t, 40, cfg.Controller.IdleCycles)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr, "env beats file")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RXBRIDGE_SERIAL_PORT", "/dev/ttyENV")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("port", "p", "/dev/ttyUSB0", "")
	flags.Int("baud", 9600, "")
	require.NoError(t, flags.Parse([]string{"--port", "/dev/ttyFLAG"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyFLAG", cfg.Serial.Port, "flag beats env")
	assert.Equal(t, 9600, cfg.Serial.Baud, "unset flag leaves default")
}
