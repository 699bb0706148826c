// Package config loads the host configuration from YAML.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/pin"
	"hc4067-ctrl/scanner"
)

const DefaultPath = "config.yaml"

const (
	BackendSerial = "serial"
	BackendPeriph = "periph"
)

var ErrInvalid = errors.New("config: invalid")

type ChannelConfig struct {
	Channel uint8  `yaml:"channel"`
	Name    string `yaml:"name"`
}

type Config struct {
	Backend string `yaml:"backend"`

	PortName string `yaml:"portName"`
	VID      string `yaml:"vid"`
	PID      string `yaml:"pid"`
	BaudRate int    `yaml:"baudRate"`

	RequestTimeout     time.Duration `yaml:"requestTimeout"`
	ReconnectDelay     time.Duration `yaml:"reconnectDelay"`
	ConfigReloadPeriod time.Duration `yaml:"configReloadPeriod"`
	ScanPeriod         time.Duration `yaml:"scanPeriod"`
	LogLevel           string        `yaml:"logLevel"`

	Pins     multiplexer.Config `yaml:"pins"`
	Scan     scanner.Config     `yaml:"scan"`
	Channels []ChannelConfig    `yaml:"channels"`
}

func Default() Config {
	return Config{
		Backend:            BackendSerial,
		VID:                "2e8a",
		PID:                "000a",
		BaudRate:           115200,
		RequestTimeout:     500 * time.Millisecond,
		ReconnectDelay:     2 * time.Second,
		ConfigReloadPeriod: 30 * time.Second,
		ScanPeriod:         50 * time.Millisecond,
		LogLevel:           "info",
		Pins:               multiplexer.DefaultConfig(),
	}
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendSerial:
		if c.PortName == "" && c.VID == "" {
			return fmt.Errorf("%w: serial backend needs portName or vid", ErrInvalid)
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("%w: baudRate %d", ErrInvalid, c.BaudRate)
		}
	case BackendPeriph:
		for name, p := range map[string]pin.Number{
			"s0": c.Pins.S0, "s1": c.Pins.S1, "s2": c.Pins.S2, "s3": c.Pins.S3, "sig": c.Pins.Sig,
		} {
			if p < 0 {
				return fmt.Errorf("%w: pins.%s is required for the periph backend", ErrInvalid, name)
			}
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}

	seen := make(map[uint8]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Channel >= multiplexer.Channels {
			return fmt.Errorf("%w: channel %d out of range", ErrInvalid, ch.Channel)
		}
		if seen[ch.Channel] {
			return fmt.Errorf("%w: channel %d named twice", ErrInvalid, ch.Channel)
		}
		seen[ch.Channel] = true
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ChannelName returns the configured name of channel, or "chNN".
func (c Config) ChannelName(channel uint8) string {
	for _, ch := range c.Channels {
		if ch.Channel == channel {
			return ch.Name
		}
	}
	return fmt.Sprintf("ch%02d", channel)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: logLevel %q", ErrInvalid, s)
	}
}

// Store holds the live configuration and reloads it from disk.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	cfg       Config
	overrides []func(*Config)
}

func NewStore(path string, cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, cfg: cfg, logger: logger}
}

func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Override applies fn now and after every reload, for settings given on the
// command line.
func (s *Store) Override(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = append(s.overrides, fn)
	fn(&s.cfg)
}

// Reload replaces the configuration with the file contents. On error the
// previous configuration is kept.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		s.logger.Warn("error reloading config", "path", s.path, "err", err)
		return err
	}
	s.mu.Lock()
	for _, fn := range s.overrides {
		fn(&cfg)
	}
	s.cfg = cfg
	s.mu.Unlock()
	s.logger.Info("configuration reloaded", "path", s.path)
	return nil
}

// Watch reloads every period until ctx is done.
func (s *Store) Watch(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.Reload()
		case <-ctx.Done():
			s.logger.Info("configuration reloader shutting down")
			return
		}
	}
}
