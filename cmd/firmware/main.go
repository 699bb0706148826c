//go:build tinygo

// Command firmware runs on an RP2040 wired to an HC4067. It serves requests
// from the host over the USB serial port, reports level changes of the
// scanned channels and drives the optional encoder console.
package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/sh1106"

	"hc4067-ctrl/combo"
	"hc4067-ctrl/device"
	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/pin"
	"hc4067-ctrl/pin/machinepin"
	"hc4067-ctrl/protocol"
	"hc4067-ctrl/rotary"
	"hc4067-ctrl/scanner"
	"hc4067-ctrl/screen"
)

const (
	encoderAddr = 0x30
	scanEvery   = 20 * time.Millisecond

	// channels 0-7 are scanned inputs, 8-15 are outputs driven by the host
	// and the console
	inputs uint16 = 0x00FF
)

var pins = multiplexer.Config{
	S0:  pin.Number(machine.GPIO2),
	S1:  pin.Number(machine.GPIO3),
	S2:  pin.Number(machine.GPIO4),
	S3:  pin.Number(machine.GPIO5),
	Sig: pin.Number(machine.GPIO6),
	En:  pin.Number(machine.GPIO7),
}

func main() {
	time.Sleep(time.Second * 2)

	mux, err := multiplexer.NewFromConfig(machinepin.New(), pins)
	if err != nil {
		println("Failed to configure multiplexer:", err.Error())
		return
	}
	dispatcher := device.New(mux, inputs)
	scan := scanner.New(mux, scanner.Config{Mask: inputs, Stable: 2})
	console := setupConsole(mux)
	if console != nil {
		console.SetInputs(inputs)
	}

	serial := machine.Serial
	var decoder protocol.Decoder
	lastScan := time.Now()

	send := func(e protocol.Event) {
		if _, err := serial.Write(protocol.Marshal(e)); err != nil {
			println("ERROR: ", err.Error())
		}
	}

	for {
		updated := false

		for serial.Buffered() > 0 {
			b, err := serial.ReadByte()
			if err != nil {
				println("Error reading serial:", err.Error())
				break
			}
			req, ok := decoder.Feed(b)
			if !ok {
				continue
			}
			reply := dispatcher.Handle(req)
			send(reply)
			if console != nil {
				console.Observe(req, reply)
				drawConsole(console)
			}
			updated = true
		}

		if console != nil {
			event, redraw, err := console.Update()
			if err != nil {
				println("Encoder error:", err.Error())
			}
			if event != nil {
				send(*event)
				updated = true
			}
			if redraw {
				drawConsole(console)
			}
		}

		if time.Since(lastScan) >= scanEvery {
			lastScan = time.Now()
			events, err := scan.Scan()
			if err != nil {
				println("Scan failed:", err.Error())
			}
			for _, e := range events {
				send(e)
				updated = true
			}
			if console != nil && console.SetLevels(scan.Levels()) {
				drawConsole(console)
			}
		}

		if !updated {
			time.Sleep(time.Millisecond * 3)
		}
	}
}

// setupConsole returns nil when no encoder answers on I2C0.
func setupConsole(mux multiplexer.Mux) *combo.Combo {
	i2c := machine.I2C0
	err := i2c.Configure(machine.I2CConfig{
		SDA:       machine.GPIO0,
		SCL:       machine.GPIO1,
		Frequency: 400000,
	})
	if err != nil {
		println("Failed to configure I2C bus")
		return nil
	}
	if i2c.Tx(encoderAddr, []byte{0x00}, nil) != nil {
		println("No encoder found, console disabled")
		return nil
	}
	encoder := rotary.NewEncoder(i2c, encoderAddr)

	var panel *screen.Panel
	if i2c.Tx(screen.ADDR, []byte{0x00}, nil) == nil {
		disp := sh1106.NewI2C(i2c)
		disp.Configure(sh1106.Config{
			Width:    128,
			Height:   64,
			VccState: sh1106.SWITCHCAPVCC,
			Address:  screen.ADDR,
		})
		panel = screen.NewPanel(&disp)
		println("Display initialized")
	}

	c := combo.NewCombo(mux, encoder, panel)
	drawConsole(c)
	return c
}

func drawConsole(c *combo.Combo) {
	if err := c.Draw(); err != nil {
		println("Draw failed:", err.Error())
	}
}
