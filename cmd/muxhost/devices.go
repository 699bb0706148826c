package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/karalabe/usb"

	"hc4067-ctrl/config"
	"hc4067-ctrl/reliableserial"
)

func listDevices(cfg config.Config, out io.Writer) error {
	want := reliableserial.USBMatcher{VID: cfg.VID, PID: cfg.PID}

	if usb.Supported() {
		infos, err := usb.Enumerate(0, 0)
		if err != nil {
			slog.Warn("error enumerating usb devices", "err", err)
		} else {
			fmt.Fprintln(out, "usb devices:")
			writeUSB(out, infos, want)
		}
	} else {
		slog.Debug("usb enumeration not supported on this platform")
	}

	ports, err := reliableserial.ListPorts()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	fmt.Fprintln(out, "serial ports:")
	writePorts(out, ports, want)
	return nil
}

func writeUSB(out io.Writer, infos []usb.DeviceInfo, want reliableserial.USBMatcher) {
	seen := make(map[string]bool)
	lines := make([]string, 0, len(infos))
	for _, d := range infos {
		info := reliableserial.DeviceInfo{
			IsUSB: true,
			VID:   fmt.Sprintf("%04x", d.VendorID),
			PID:   fmt.Sprintf("%04x", d.ProductID),
		}
		line := fmt.Sprintf("  %s:%s %s %s %s", info.VID, info.PID,
			orDash(d.Manufacturer), orDash(d.Product), orDash(d.Serial))
		if want.Match(info) {
			line += " *"
		}
		// one entry per interface is reported
		if seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}

func writePorts(out io.Writer, ports []reliableserial.DeviceInfo, want reliableserial.USBMatcher) {
	for _, p := range ports {
		if !p.IsUSB {
			fmt.Fprintf(out, "  %s\n", p.Name)
			continue
		}
		mark := ""
		if want.Match(p) {
			mark = " *"
		}
		fmt.Fprintf(out, "  %s %s:%s %s%s\n", p.Name, strings.ToLower(p.VID), strings.ToLower(p.PID), orDash(p.Product), mark)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
