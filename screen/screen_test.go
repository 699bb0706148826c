package screen

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDisplay struct {
	w, h     int16
	px       map[[2]int16]bool
	displays int
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{w: 128, h: 64, px: make(map[[2]int16]bool)}
}

func (f *fakeDisplay) Size() (int16, int16) { return f.w, f.h }

func (f *fakeDisplay) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return
	}
	f.px[[2]int16{x, y}] = c.R != 0
}

func (f *fakeDisplay) Display() error {
	f.displays++
	return nil
}

func (f *fakeDisplay) on(x, y int16) bool { return f.px[[2]int16{x, y}] }

func (f *fakeDisplay) anyOn(x0, y0, x1, y1 int16) bool {
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			if f.on(x, y) {
				return true
			}
		}
	}
	return false
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "CH05 EN", Status{Cursor: 5, Enabled: true}.Header())
	assert.Equal(t, "CH12 DIS", Status{Cursor: 12}.Header())
	assert.Equal(t, "CH01 DIS", Status{Cursor: 17}.Header())
}

func TestBoxLayoutFitsDisplay(t *testing.T) {
	for ch := uint8(0); ch < 16; ch++ {
		x, y := Box(ch)
		assert.GreaterOrEqual(t, x, int16(0))
		assert.LessOrEqual(t, x+boxSize, int16(128))
		assert.LessOrEqual(t, y+boxSize+2, int16(64))
	}
	x0, y0 := Box(0)
	x8, y8 := Box(8)
	assert.Equal(t, x0, x8)
	assert.Greater(t, y8, y0)
}

func TestDrawFillsHighChannels(t *testing.T) {
	d := newFakeDisplay()
	p := NewPanel(d)

	require.NoError(t, p.Draw(Status{Levels: 1<<3 | 1<<9, Cursor: 9, Enabled: true}))
	assert.Equal(t, 1, d.displays)

	for ch := uint8(0); ch < 16; ch++ {
		x, y := Box(ch)
		assert.True(t, d.on(x, y), "outline of %d", ch)
		center := d.on(x+boxSize/2, y+boxSize/2)
		assert.Equal(t, ch == 3 || ch == 9, center, "fill of %d", ch)
	}

	x, y := Box(9)
	assert.True(t, d.on(x, y+boxSize+1), "cursor underline")
	x, y = Box(3)
	assert.False(t, d.on(x, y+boxSize+1))

	assert.True(t, d.anyOn(0, 0, 128, boxTop-2), "header text")
}

func TestDrawClearsPreviousFrame(t *testing.T) {
	d := newFakeDisplay()
	p := NewPanel(d)

	require.NoError(t, p.Draw(Status{Levels: 1}))
	x, y := Box(0)
	require.True(t, d.on(x+boxSize/2, y+boxSize/2))

	require.NoError(t, p.Draw(Status{}))
	assert.False(t, d.on(x+boxSize/2, y+boxSize/2))

	require.NoError(t, p.Clear())
	assert.False(t, d.anyOn(0, 0, 128, 64))
}
