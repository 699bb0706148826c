//go:build tinygo

// Package machinepin adapts tinygo's machine.Pin to pin.Controller.
package machinepin

import (
	"machine"

	"hc4067-ctrl/pin"
)

// Controller maps pin.Number directly onto machine.Pin.
//
// machine has no bidirectional mode, so InputOutput lines start as inputs
// and switch to outputs on the first Set. Get always reads the pad.
type Controller struct {
	bidi   map[pin.Number]bool
	output map[pin.Number]bool
}

var _ pin.Controller = (*Controller)(nil)

func New() *Controller {
	return &Controller{
		bidi:   make(map[pin.Number]bool),
		output: make(map[pin.Number]bool),
	}
}

func (c *Controller) Reset(p pin.Number) error {
	delete(c.bidi, p)
	delete(c.output, p)
	machine.Pin(p).Configure(machine.PinConfig{Mode: machine.PinInput})
	return nil
}

func (c *Controller) SetDirection(p pin.Number, d pin.Direction) error {
	mp := machine.Pin(p)
	c.bidi[p] = d == pin.InputOutput
	switch d {
	case pin.Output:
		mp.Configure(machine.PinConfig{Mode: machine.PinOutput})
		c.output[p] = true
	default:
		mp.Configure(machine.PinConfig{Mode: machine.PinInput})
		c.output[p] = false
	}
	return nil
}

func (c *Controller) Set(p pin.Number, level bool) error {
	mp := machine.Pin(p)
	if c.bidi[p] && !c.output[p] {
		mp.Configure(machine.PinConfig{Mode: machine.PinOutput})
		c.output[p] = true
	}
	mp.Set(level)
	return nil
}

func (c *Controller) Get(p pin.Number) (bool, error) {
	return machine.Pin(p).Get(), nil
}
