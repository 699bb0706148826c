// Package periphpin adapts periph.io GPIO lines to pin.Controller so the
// drivers in this module run on Linux single board computers.
package periphpin

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"hc4067-ctrl/pin"
)

var ErrUnknownPin = errors.New("periphpin: unknown pin")

// Lookup resolves a pin number to a periph line, or nil when the board has
// no such line.
type Lookup func(n pin.Number) gpio.PinIO

// ByName looks lines up in the periph registry as "GPIO<n>" (BCM numbering
// on a Raspberry Pi).
func ByName(n pin.Number) gpio.PinIO {
	return gpioreg.ByName(fmt.Sprintf("GPIO%d", int(n)))
}

// Init loads the periph host drivers. It is safe to call more than once.
func Init() error {
	_, err := host.Init()
	return err
}

type line struct {
	io     gpio.PinIO
	bidi   bool
	output bool
	level  gpio.Level
}

// Controller drives periph lines. InputOutput lines float as inputs until
// the first Set turns them into outputs.
type Controller struct {
	lookup Lookup

	mu    sync.Mutex
	lines map[pin.Number]*line
}

var _ pin.Controller = (*Controller)(nil)

// New returns a Controller resolving pins with lookup, or ByName when lookup
// is nil. Call Init first when using the registry.
func New(lookup Lookup) *Controller {
	if lookup == nil {
		lookup = ByName
	}
	return &Controller{lookup: lookup, lines: make(map[pin.Number]*line)}
}

func (c *Controller) get(p pin.Number) (*line, error) {
	if l, ok := c.lines[p]; ok {
		return l, nil
	}
	io := c.lookup(p)
	if io == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPin, p)
	}
	l := &line{io: io}
	c.lines[p] = l
	return l, nil
}

func (c *Controller) Reset(p pin.Number) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, err := c.get(p)
	if err != nil {
		return err
	}
	l.bidi, l.output, l.level = false, false, gpio.Low
	return l.io.In(gpio.Float, gpio.NoEdge)
}

func (c *Controller) SetDirection(p pin.Number, d pin.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, err := c.get(p)
	if err != nil {
		return err
	}
	l.bidi = d == pin.InputOutput
	if d == pin.Output {
		l.output = true
		return l.io.Out(l.level)
	}
	l.output = false
	if err := l.io.In(gpio.Float, gpio.NoEdge); err != nil {
		return err
	}
	if d == pin.Disabled {
		return l.io.Halt()
	}
	return nil
}

func (c *Controller) Set(p pin.Number, level bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, err := c.get(p)
	if err != nil {
		return err
	}
	if !l.output && !l.bidi {
		return fmt.Errorf("periphpin: %s is not an output", p)
	}
	l.level = gpio.Level(level)
	l.output = true
	return l.io.Out(l.level)
}

func (c *Controller) Get(p pin.Number) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, err := c.get(p)
	if err != nil {
		return false, err
	}
	return l.io.Read() == gpio.High, nil
}
