// Package rotary reads the I2C rotary encoder boards used on the local
// console. A read returns five bytes: the little-endian step counter
// followed by the button/rotation state.
package rotary

import (
	"tinygo.org/x/drivers"
)

type RotaryState byte

const (
	RotaryIdle     RotaryState = 0x00
	BtnClick       RotaryState = 0x01
	BtnDoubleClick RotaryState = 0x02
	BtnLongPress   RotaryState = 0x03
	BtnLongRelease RotaryState = 0x04
	RotaryCCW      RotaryState = 0x05
	RotaryCW       RotaryState = 0x06
)

const resetFlag = 0xAA

func (r RotaryState) String() string {
	switch r {
	case RotaryIdle:
		return "Idle"
	case BtnClick:
		return "Click"
	case BtnDoubleClick:
		return "Double Click"
	case BtnLongPress:
		return "Long Press"
	case BtnLongRelease:
		return "Long Release"
	case RotaryCCW:
		return "Counter Clockwise"
	case RotaryCW:
		return "Clockwise"
	default:
		return "Unknown"
	}
}

type Encoder struct {
	bus       drivers.I2C
	address   uint16
	buf       [5]byte
	lastState RotaryState
}

func NewEncoder(bus drivers.I2C, address uint16) *Encoder {
	return &Encoder{
		bus:     bus,
		address: address,
	}
}

// Read fetches the counter and state in one transaction.
func (e *Encoder) Read() (int32, RotaryState, error) {
	if err := e.bus.Tx(e.address, nil, e.buf[:]); err != nil {
		return 0, RotaryIdle, err
	}
	count := int32(e.buf[0]) |
		int32(e.buf[1])<<8 |
		int32(e.buf[2])<<16 |
		int32(e.buf[3])<<24
	e.lastState = RotaryState(e.buf[4])
	return count, e.lastState, nil
}

// GetCount reads the current internal counter value from the encoder.
func (e *Encoder) GetCount() (int32, error) {
	count, _, err := e.Read()
	return count, err
}

// GetState reads the current state of the encoder.
func (e *Encoder) GetState() (RotaryState, error) {
	_, state, err := e.Read()
	return state, err
}

// LastState is the state seen by the most recent successful read.
func (e *Encoder) LastState() RotaryState { return e.lastState }

// ResetCounter resets the internal encoder's counter to zero.
func (e *Encoder) ResetCounter() error {
	return e.bus.Tx(e.address, []byte{resetFlag}, nil)
}
