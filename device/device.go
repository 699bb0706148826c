// Package device turns host requests into multiplexer calls on the firmware.
package device

import (
	"errors"

	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/protocol"
)

// Dispatcher keeps input channels and output channels apart: bit i of
// inputs marks channel i as an input, which the host may read but not drive.
type Dispatcher struct {
	mux    multiplexer.Mux
	inputs uint16
}

func New(mux multiplexer.Mux, inputs uint16) *Dispatcher {
	return &Dispatcher{mux: mux, inputs: inputs}
}

func (d *Dispatcher) isInput(ch uint8) bool { return d.inputs&(1<<ch) != 0 }

// Handle executes one request and returns the reply to send back.
func (d *Dispatcher) Handle(e protocol.Event) protocol.Event {
	ch := multiplexer.Mask(int(e.Channel))
	switch e.Type {
	case protocol.TypeGet:
		level, err := d.get(ch)
		if err != nil {
			return failure(ch, err)
		}
		return protocol.Level(ch, level)
	case protocol.TypeSet:
		if d.isInput(ch) {
			return protocol.Event{Type: protocol.TypeError, Channel: ch, State: protocol.ErrCodeUnsupported}
		}
		if err := d.mux.Set(int(ch), e.State != 0); err != nil {
			return failure(ch, err)
		}
		return protocol.Event{Type: protocol.TypeAck, Channel: ch, State: e.State}
	case protocol.TypeEnable:
		if err := d.mux.Enable(); err != nil {
			return failure(ch, err)
		}
		return protocol.Event{Type: protocol.TypeAck, Channel: ch, State: 1}
	case protocol.TypeDisable:
		if err := d.mux.Disable(); err != nil {
			return failure(ch, err)
		}
		return protocol.Event{Type: protocol.TypeAck, Channel: ch}
	case protocol.TypeHello:
		return protocol.Event{Type: protocol.TypeHello, Channel: e.Channel, State: e.State}
	default:
		return protocol.Event{Type: protocol.TypeError, Channel: e.Channel, State: protocol.ErrCodeUnsupported}
	}
}

// get reads an input channel with SIG released so a held output does not
// mask the external level.
func (d *Dispatcher) get(ch uint8) (level bool, err error) {
	h, ok := d.mux.(multiplexer.Holder)
	if !ok || !d.isInput(ch) {
		return d.mux.Get(int(ch))
	}
	if err := h.Release(); err != nil {
		return false, err
	}
	level, err = d.mux.Get(int(ch))
	if rerr := h.Resume(); rerr != nil && err == nil {
		err = rerr
	}
	return level, err
}

func failure(ch uint8, err error) protocol.Event {
	code := protocol.ErrCodeHardware
	if errors.Is(err, multiplexer.ErrClosed) {
		code = protocol.ErrCodeClosed
	}
	return protocol.Event{Type: protocol.TypeError, Channel: ch, State: code}
}
