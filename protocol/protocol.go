// Package protocol is the framing used between the firmware and the host.
// Every frame is five bytes: two signature bytes, type, channel and state.
package protocol

import (
	"errors"
	"strconv"
)

type EventType uint8

const (
	// host -> device
	TypeGet EventType = iota + 1
	TypeSet
	TypeEnable
	TypeDisable

	// device -> host
	TypeLevel
	TypeAck
	TypeError

	// both directions
	TypeHello

	// device -> host, unsolicited: scanner changes and console actions
	TypeChange
)

const (
	Signature uint8 = 0x69
	FrameSize       = 5
)

// Error codes carried in the state byte of TypeError frames.
const (
	ErrCodeUnsupported uint8 = iota + 1
	ErrCodeHardware
	ErrCodeClosed
)

var ErrBadFrame = errors.New("protocol: bad frame")

type Event struct {
	Type    EventType
	Channel uint8
	State   uint8
}

func Marshal(e Event) []byte {
	return []byte{Signature, Signature, uint8(e.Type), e.Channel, e.State}
}

func Unmarshal(data []byte) (Event, bool) {
	if len(data) != FrameSize {
		return Event{}, false
	}
	if !IsEventAtStart(data) {
		return Event{}, false
	}
	t := EventType(data[2])
	if t < TypeGet || t > TypeChange {
		return Event{}, false
	}
	return Event{Type: t, Channel: data[3], State: data[4]}, true
}

func NewEvent(t EventType, channel, state uint8) *Event {
	return &Event{Type: t, Channel: channel, State: state}
}

// Level builds a TypeLevel event for a channel read.
func Level(channel uint8, high bool) Event {
	return Event{Type: TypeLevel, Channel: channel, State: boolByte(high)}
}

// Change builds the unsolicited TypeChange event the device sends when a
// channel level changes without a host request.
func Change(channel uint8, high bool) Event {
	return Event{Type: TypeChange, Channel: channel, State: boolByte(high)}
}

func (e *Event) High() bool { return e.State != 0 }

// Serialize, Deserialize and Size let *Event travel over reliableserial.
func (e *Event) Serialize() []byte { return Marshal(*e) }

func (e *Event) Deserialize(data []byte) error {
	ev, ok := Unmarshal(data)
	if !ok {
		return ErrBadFrame
	}
	*e = ev
	return nil
}

func (e *Event) Size() int { return FrameSize }

func (t EventType) String() string {
	switch t {
	case TypeGet:
		return "Get"
	case TypeSet:
		return "Set"
	case TypeEnable:
		return "Enable"
	case TypeDisable:
		return "Disable"
	case TypeLevel:
		return "Level"
	case TypeAck:
		return "Ack"
	case TypeError:
		return "Error"
	case TypeHello:
		return "Hello"
	case TypeChange:
		return "Change"
	default:
		return "Unknown"
	}
}

// String avoids fmt so it stays cheap on the microcontroller.
func (e *Event) String() string {
	ch := strconv.Itoa(int(e.Channel))
	if e.Channel < 10 {
		ch = "0" + ch
	}
	return e.Type.String() + " ch" + ch + " " + strconv.Itoa(int(e.State))
}

func IsEventAtStart(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return data[0] == Signature && data[1] == Signature
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Decoder assembles frames from a byte stream. Bytes that cannot start a
// frame are dropped until the signature lines up again.
type Decoder struct {
	buf [FrameSize]byte
	n   int
}

func (d *Decoder) Feed(b byte) (Event, bool) {
	if d.n < 2 && b != Signature {
		d.n = 0
		return Event{}, false
	}
	d.buf[d.n] = b
	d.n++
	if d.n < FrameSize {
		return Event{}, false
	}

	e, ok := Unmarshal(d.buf[:])
	if ok {
		d.n = 0
		return e, true
	}
	// Slide to the next possible signature inside the rejected frame.
	d.n = d.resync()
	return Event{}, false
}

func (d *Decoder) resync() int {
	for i := 1; i < FrameSize; i++ {
		if d.buf[i] != Signature {
			continue
		}
		if i+1 < FrameSize && d.buf[i+1] != Signature {
			continue
		}
		return copy(d.buf[:], d.buf[i:])
	}
	return 0
}

func (d *Decoder) Reset() { d.n = 0 }
