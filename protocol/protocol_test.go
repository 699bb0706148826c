package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalLayout(t *testing.T) {
	b := Marshal(Event{Type: TypeSet, Channel: 5, State: 1})
	assert.Equal(t, []byte{0x69, 0x69, 2, 5, 1}, b)
}

func TestUnmarshalRejects(t *testing.T) {
	cases := map[string][]byte{
		"short":        {0x69, 0x69, 1, 0},
		"long":         {0x69, 0x69, 1, 0, 0, 0},
		"signature":    {0x69, 0x68, 1, 0, 0},
		"type zero":    {0x69, 0x69, 0, 0, 0},
		"type too big": {0x69, 0x69, 10, 0, 0},
	}
	for name, data := range cases {
		_, ok := Unmarshal(data)
		assert.False(t, ok, name)
	}

	e, ok := Unmarshal([]byte{0x69, 0x69, uint8(TypeLevel), 15, 1})
	require.True(t, ok)
	assert.Equal(t, Event{Type: TypeLevel, Channel: 15, State: 1}, e)
	assert.True(t, e.High())
}

func TestSerializable(t *testing.T) {
	var e Event
	assert.Equal(t, FrameSize, e.Size())
	assert.ErrorIs(t, e.Deserialize([]byte{1, 2, 3, 4, 5}), ErrBadFrame)

	require.NoError(t, e.Deserialize([]byte{0x69, 0x69, uint8(TypeAck), 3, 0}))
	assert.Equal(t, Event{Type: TypeAck, Channel: 3}, e)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Level ch07 1", NewEvent(TypeLevel, 7, 1).String())
	assert.Equal(t, "Error ch12 2", NewEvent(TypeError, 12, ErrCodeHardware).String())
	assert.Equal(t, "Unknown ch00 0", NewEvent(0, 0, 0).String())
}

func TestLevel(t *testing.T) {
	assert.Equal(t, Event{Type: TypeLevel, Channel: 4, State: 1}, Level(4, true))
	assert.Equal(t, Event{Type: TypeLevel, Channel: 4}, Level(4, false))
}

func TestChangeIsItsOwnFrameType(t *testing.T) {
	e := Change(3, true)
	assert.Equal(t, Event{Type: TypeChange, Channel: 3, State: 1}, e)
	assert.Equal(t, []byte{0x69, 0x69, 9, 3, 1}, Marshal(e))
	assert.NotEqual(t, Level(3, true), e)

	got, ok := Unmarshal(Marshal(e))
	require.True(t, ok)
	assert.Equal(t, "Change ch03 1", got.String())
}

func feed(d *Decoder, data []byte) []Event {
	var out []Event
	for _, b := range data {
		if e, ok := d.Feed(b); ok {
			out = append(out, e)
		}
	}
	return out
}

func TestDecoderStream(t *testing.T) {
	var d Decoder
	var stream []byte
	stream = append(stream, Marshal(Event{Type: TypeGet, Channel: 1})...)
	stream = append(stream, 0x00, 0x13, 0x69)
	stream = append(stream, Marshal(Event{Type: TypeSet, Channel: 2, State: 1})...)

	assert.Equal(t, []Event{
		{Type: TypeGet, Channel: 1},
		{Type: TypeSet, Channel: 2, State: 1},
	}, feed(&d, stream))
}

func TestDecoderResyncsInsideRejectedFrame(t *testing.T) {
	var d Decoder
	// Invalid type byte; a real frame starts at the second signature byte.
	stream := []byte{0x69, 0x69, 0x69, 0x69, uint8(TypeAck)}
	stream = append(stream, 4, 0)

	assert.Equal(t, []Event{{Type: TypeAck, Channel: 4}}, feed(&d, stream))
}

func TestDecoderReset(t *testing.T) {
	var d Decoder
	feed(&d, []byte{0x69, 0x69, 1})
	d.Reset()
	assert.Equal(t, []Event{{Type: TypeHello}}, feed(&d, Marshal(Event{Type: TypeHello})))
}
