package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"hc4067-ctrl/config"
	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/protocol"
	"hc4067-ctrl/scanner"
)

var errUsage = errors.New("bad usage")

func run(ctx context.Context, mux multiplexer.Mux, events <-chan protocol.Event, store *config.Store, args []string, out io.Writer) error {
	cfg := store.Get()
	switch args[0] {
	case "get":
		ch, err := channelArg(args, 1)
		if err != nil {
			return err
		}
		high, err := mux.Get(ch)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d\n", cfg.ChannelName(multiplexer.Mask(ch)), levelDigit(high))
		return nil

	case "set":
		ch, err := channelArg(args, 1)
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return fmt.Errorf("%w: set <channel> <0|1>", errUsage)
		}
		state, err := strconv.ParseBool(args[2])
		if err != nil {
			return fmt.Errorf("%w: state %q", errUsage, args[2])
		}
		return mux.Set(ch, state)

	case "enable":
		return mux.Enable()

	case "disable":
		return mux.Disable()

	case "scan":
		events, err := scanner.New(mux, cfg.Scan).Scan()
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Fprintf(out, "%s %d\n", cfg.ChannelName(e.Channel), e.State)
		}
		return nil

	case "monitor":
		if events != nil {
			return monitorEvents(ctx, events, store)
		}
		return monitorScan(ctx, mux, store)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func channelArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%w: %s needs a channel", errUsage, args[0])
	}
	ch, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: channel %q", errUsage, args[i])
	}
	return ch, nil
}

func levelDigit(high bool) int {
	if high {
		return 1
	}
	return 0
}

func logEvent(store *config.Store, e protocol.Event) {
	cfg := store.Get()
	switch e.Type {
	case protocol.TypeChange:
		slog.Info("level", "channel", e.Channel, "name", cfg.ChannelName(e.Channel), "state", e.State)
	case protocol.TypeEnable, protocol.TypeDisable:
		slog.Info("console", "action", e.Type.String(), "cursor", e.Channel)
	case protocol.TypeHello:
		slog.Debug("device hello")
	default:
		slog.Warn("unexpected event", "event", e.String())
	}
}

func monitorEvents(ctx context.Context, events <-chan protocol.Event, store *config.Store) error {
	slog.Info("monitoring device events. press Ctrl+C to exit")
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			logEvent(store, e)
		}
	}
}

// monitorScan polls a locally wired multiplexer.
func monitorScan(ctx context.Context, mux multiplexer.Mux, store *config.Store) error {
	cfg := store.Get()
	period := cfg.ScanPeriod
	if period <= 0 {
		period = 50 * time.Millisecond
	}
	s := scanner.New(mux, cfg.Scan)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	slog.Info("monitoring channels", "period", period)
	for {
		events, err := s.Scan()
		if err != nil {
			return err
		}
		for _, e := range events {
			logEvent(store, e)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
