// Command muxhost reads and drives an HC4067 multiplexer from a host
// computer, either through the firmware on a serial port or directly on the
// GPIO header of a Linux board.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dikkadev/prettyslog"

	"hc4067-ctrl/config"
	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/pin/periphpin"
	"hc4067-ctrl/protocol"
	"hc4067-ctrl/reliableserial"
	"hc4067-ctrl/remote"
)

const connectTimeout = 5 * time.Second

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: muxhost [flags] <command> [args]

commands:
  get <channel>          print the level of a channel
  set <channel> <0|1>    drive a channel
  enable                 connect SIG to the selected channel
  disable                isolate SIG
  scan                   read every scanned channel once
  monitor                log level changes until interrupted
  devices                list USB devices and serial ports

flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML configuration")
	portName := flag.String("port", "", "serial port name (e.g., COM3 or /dev/ttyACM0)")
	backend := flag.String("backend", "", "override the configured backend (serial or periph)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatal(err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)

	logger := slog.New(prettyslog.NewPrettyslogHandler("mux",
		prettyslog.WithLevel(level),
	))
	slog.SetDefault(logger)

	store := config.NewStore(*configPath, cfg, logger)
	store.Override(func(c *config.Config) {
		if *portName != "" {
			c.PortName = *portName
		}
		if *backend != "" {
			c.Backend = *backend
		}
	})
	if err := store.Get().Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flag.Arg(0) == "devices" {
		if err := listDevices(store.Get(), os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	mux, events, cleanup, err := open(ctx, store.Get(), logger)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	if flag.Arg(0) == "monitor" {
		go store.Watch(ctx, store.Get().ConfigReloadPeriod)
	}

	if err := run(ctx, mux, events, store, flag.Args(), os.Stdout); err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "err", err)
		cleanup()
		os.Exit(1)
	}
}

// open returns the configured backend. events is nil for backends without
// device-side notifications.
func open(ctx context.Context, cfg config.Config, logger *slog.Logger) (multiplexer.Mux, <-chan protocol.Event, func(), error) {
	switch cfg.Backend {
	case config.BackendPeriph:
		if err := periphpin.Init(); err != nil {
			return nil, nil, nil, fmt.Errorf("init periph: %w", err)
		}
		m, err := multiplexer.NewFromConfig(periphpin.New(nil), cfg.Pins)
		if err != nil {
			return nil, nil, nil, err
		}
		return m, nil, func() { _ = m.Close() }, nil

	default:
		rs := reliableserial.NewReliableSerial(
			matcher(cfg),
			reliableserial.SerialConfig{
				BaudRate:       cfg.BaudRate,
				ReconnectDelay: cfg.ReconnectDelay,
			},
			logger,
			func() []byte {
				return protocol.Marshal(protocol.Event{Type: protocol.TypeHello})
			},
			func() reliableserial.Serializable { return &protocol.Event{} },
		)
		client := remote.New(rs, remote.Options{Timeout: cfg.RequestTimeout, Logger: logger})
		cleanup := func() {
			_ = client.Close()
			rs.Close()
		}
		if err := waitConnected(ctx, rs, connectTimeout); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		return client, client.Notifications(), cleanup, nil
	}
}

func matcher(cfg config.Config) reliableserial.Matcher {
	if cfg.PortName != "" {
		return reliableserial.NameMatcher(cfg.PortName)
	}
	return reliableserial.USBMatcher{VID: cfg.VID, PID: cfg.PID}
}

func waitConnected(ctx context.Context, rs *reliableserial.ReliableSerial, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for rs.Connected() == "" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("no device connected after %s", timeout)
		case <-tick.C:
		}
	}
	return nil
}
