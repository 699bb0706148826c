// Package combo is the local console: one rotary encoder and one status
// panel bound to a multiplexer. Turning the knob moves the cursor over the
// channels, a click toggles the cursor channel output and a double click
// toggles the enable line.
package combo

import (
	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/protocol"
	"hc4067-ctrl/rotary"
	"hc4067-ctrl/screen"
)

type Combo struct {
	mux     multiplexer.Mux
	encoder *rotary.Encoder
	panel   *screen.Panel

	cursor    uint8
	inputs    uint16
	outputs   uint16
	levels    uint16
	enabled   bool
	lastCount int32
	primed    bool
}

// NewCombo binds the console. panel may be nil on boards without a display.
func NewCombo(mux multiplexer.Mux, encoder *rotary.Encoder, panel *screen.Panel) *Combo {
	return &Combo{
		mux:     mux,
		encoder: encoder,
		panel:   panel,
	}
}

// Update polls the encoder once. It returns the event to report to the host
// for actions that changed the multiplexer, and whether the panel needs a
// redraw.
func (c *Combo) Update() (*protocol.Event, bool, error) {
	count, state, err := c.encoder.Read()
	if err != nil {
		return nil, false, err
	}

	switch state {
	case rotary.BtnClick:
		bit := uint16(1) << c.cursor
		if c.inputs&bit != 0 {
			return nil, false, nil
		}
		on := c.outputs&bit == 0
		if err := c.mux.Set(int(c.cursor), on); err != nil {
			return nil, false, err
		}
		c.outputs ^= bit
		c.enabled = true
		e := protocol.Change(c.cursor, on)
		return &e, true, nil
	case rotary.BtnDoubleClick:
		if c.enabled {
			if err := c.mux.Disable(); err != nil {
				return nil, false, err
			}
			c.enabled = false
			return protocol.NewEvent(protocol.TypeDisable, c.cursor, 0), true, nil
		}
		if err := c.mux.Enable(); err != nil {
			return nil, false, err
		}
		c.enabled = true
		return protocol.NewEvent(protocol.TypeEnable, c.cursor, 1), true, nil
	}

	if !c.primed {
		c.primed = true
		c.lastCount = count
		return nil, false, nil
	}
	delta := count - c.lastCount
	if delta == 0 {
		return nil, false, nil
	}
	c.lastCount = count
	c.cursor = uint8((int32(c.cursor) + delta%multiplexer.Channels + multiplexer.Channels) % multiplexer.Channels)
	return nil, true, nil
}

// SetInputs marks the channels the console must not drive; clicks on them
// are ignored.
func (c *Combo) SetInputs(mask uint16) { c.inputs = mask }

// Observe keeps the console in sync with requests the host made.
func (c *Combo) Observe(req, reply protocol.Event) {
	if reply.Type != protocol.TypeAck {
		return
	}
	switch req.Type {
	case protocol.TypeSet:
		bit := uint16(1) << (req.Channel & 0x0F)
		if req.State != 0 {
			c.outputs |= bit
		} else {
			c.outputs &^= bit
		}
		c.enabled = true
	case protocol.TypeEnable:
		c.enabled = true
	case protocol.TypeDisable:
		c.enabled = false
	}
}

// SetLevels records the latest scanned input levels.
func (c *Combo) SetLevels(levels uint16) bool {
	if levels == c.levels {
		return false
	}
	c.levels = levels
	return true
}

func (c *Combo) Status() screen.Status {
	return screen.Status{
		Levels:  c.levels | c.outputs,
		Cursor:  c.cursor,
		Enabled: c.enabled,
	}
}

func (c *Combo) Cursor() uint8 { return c.cursor }

func (c *Combo) Draw() error {
	if c.panel == nil {
		return nil
	}
	return c.panel.Draw(c.Status())
}

func (c *Combo) ClearScreen() error {
	if c.panel == nil {
		return nil
	}
	return c.panel.Clear()
}
