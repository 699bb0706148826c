package periphpin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"hc4067-ctrl/multiplexer"
	"hc4067-ctrl/pin"
)

func fakeBoard(n int) (map[pin.Number]*gpiotest.Pin, Lookup) {
	pins := make(map[pin.Number]*gpiotest.Pin, n)
	for i := 0; i < n; i++ {
		pins[pin.Number(i)] = &gpiotest.Pin{N: pin.Number(i).String(), Num: i}
	}
	return pins, func(p pin.Number) gpio.PinIO {
		if fp, ok := pins[p]; ok {
			return fp
		}
		return nil
	}
}

func TestUnknownPin(t *testing.T) {
	_, lookup := fakeBoard(2)
	c := New(lookup)

	assert.ErrorIs(t, c.Reset(9), ErrUnknownPin)
	_, err := c.Get(9)
	assert.ErrorIs(t, err, ErrUnknownPin)
}

func TestOutputLine(t *testing.T) {
	pins, lookup := fakeBoard(2)
	c := New(lookup)

	require.NoError(t, c.Reset(1))
	require.NoError(t, c.SetDirection(1, pin.Output))
	require.NoError(t, c.Set(1, true))
	assert.Equal(t, gpio.High, pins[1].L)

	v, err := c.Get(1)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestSetRequiresOutput(t *testing.T) {
	_, lookup := fakeBoard(2)
	c := New(lookup)

	require.NoError(t, c.SetDirection(0, pin.Input))
	assert.Error(t, c.Set(0, true))
}

func TestBidirectionalLineReadsThenDrives(t *testing.T) {
	pins, lookup := fakeBoard(1)
	c := New(lookup)

	require.NoError(t, c.SetDirection(0, pin.InputOutput))
	pins[0].L = gpio.High
	v, err := c.Get(0)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, c.Set(0, false))
	assert.Equal(t, gpio.Low, pins[0].L)
}

func TestDrivesHC4067(t *testing.T) {
	pins, lookup := fakeBoard(6)
	c := New(lookup)

	m, err := multiplexer.New(c, 0, 1, 2, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, gpio.High, pins[5].L, "mux starts disabled")

	require.NoError(t, m.Set(6, true))
	assert.Equal(t, gpio.Low, pins[0].L)
	assert.Equal(t, gpio.High, pins[1].L)
	assert.Equal(t, gpio.High, pins[2].L)
	assert.Equal(t, gpio.Low, pins[3].L)
	assert.Equal(t, gpio.High, pins[4].L)
	assert.Equal(t, gpio.Low, pins[5].L)

	require.NoError(t, m.Close())
	assert.Equal(t, gpio.High, pins[5].L)
}
