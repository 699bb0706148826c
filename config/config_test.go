package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hc4067-ctrl/pin"
)

const sample = `
backend: periph
requestTimeout: 250ms
logLevel: debug
pins:
  s0: 17
  s1: 27
  s2: 22
  s3: 23
  sig: 24
scan:
  mask: 255
  stable: 2
channels:
  - channel: 0
    name: front-door
  - channel: 3
    name: window
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, BackendPeriph, cfg.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, pin.Number(17), cfg.Pins.S0)
	assert.Equal(t, pin.Number(24), cfg.Pins.Sig)
	assert.Equal(t, pin.NC, cfg.Pins.En, "enable stays unconnected when omitted")
	assert.Equal(t, uint16(255), cfg.Scan.Mask)
	assert.Equal(t, 2, cfg.Scan.Stable)
	assert.Equal(t, "window", cfg.ChannelName(3))
	assert.Equal(t, "ch07", cfg.ChannelName(7))

	level, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown backend": "backend: bluetooth",
		"periph pins":     "backend: periph\npins: {s0: 1, s1: 2, s2: 3, s3: 4}",
		"serial target":   "backend: serial\nvid: \"\"",
		"baud":            "baudRate: -1",
		"channel range":   "channels: [{channel: 16, name: x}]",
		"channel twice":   "channels: [{channel: 1, name: a}, {channel: 1, name: b}]",
		"log level":       "logLevel: chatty",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalid, name)
	}

	_, err := Parse([]byte("backend: [oops"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoreReloadKeepsOverrides(t *testing.T) {
	path := writeFile(t, sample)
	cfg, err := Load(path)
	require.NoError(t, err)

	s := NewStore(path, cfg, nil)
	s.Override(func(c *Config) { c.PortName = "COM7" })
	assert.Equal(t, "COM7", s.Get().PortName)

	require.NoError(t, os.WriteFile(path, []byte(sample+"\nbaudRate: 9600\n"), 0o600))
	require.NoError(t, s.Reload())
	assert.Equal(t, 9600, s.Get().BaudRate)
	assert.Equal(t, "COM7", s.Get().PortName)

	require.NoError(t, os.WriteFile(path, []byte("backend: nope"), 0o600))
	assert.ErrorIs(t, s.Reload(), ErrInvalid)
	assert.Equal(t, 9600, s.Get().BaudRate, "bad file keeps the previous config")
}

func TestStoreWatch(t *testing.T) {
	path := writeFile(t, sample)
	s := NewStore(path, Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Get().Backend == BackendPeriph }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
