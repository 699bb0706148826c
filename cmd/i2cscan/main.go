//go:build tinygo

// Command i2cscan probes I2C0 for the console peripherals and prints every
// address that answers.
package main

import (
	"machine"
	"time"

	"hc4067-ctrl/screen"
)

const encoderAddr = 0x30

func main() {
	time.Sleep(time.Second * 2)

	i2c := machine.I2C0
	err := i2c.Configure(machine.I2CConfig{
		SDA: machine.GPIO0,
		SCL: machine.GPIO1,
	})
	if err != nil {
		println("Failed to configure I2C bus")
		return
	}

	for {
		println("Scanning I2C bus")
		found := 0
		for addr := uint16(0x08); addr < 0x78; addr++ {
			if i2c.Tx(addr, []byte{0x00}, nil) != nil {
				continue
			}
			found++
			println("Found device at address", hex(addr), role(addr))
		}
		if found == 0 {
			println("No devices found")
		}
		time.Sleep(time.Second * 10)
	}
}

func role(addr uint16) string {
	switch addr {
	case screen.ADDR:
		return "(display)"
	case encoderAddr:
		return "(encoder)"
	default:
		return ""
	}
}

func hex(i uint16) string {
	const digits = "0123456789ABCDEF"
	return "0x" + string(digits[i>>4]) + string(digits[i&0x0F])
}
