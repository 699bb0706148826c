// Package screen renders the multiplexer status on a small monochrome
// display: a header line with the cursor channel and enable state, and one
// box per channel, filled when the channel is high.
package screen

import (
	"image/color"
	"strconv"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
)

const (
	ADDR = 0x3C

	headerBaseline = 12
	boxTop         = 18
	boxSize        = 14
	boxPitch       = 16
	rowPitch       = 22
	perRow         = 8
)

var (
	onColor  = color.RGBA{255, 255, 255, 255}
	offColor = color.RGBA{0, 0, 0, 255}
)

// Status is everything the panel shows.
type Status struct {
	Levels  uint16
	Cursor  uint8
	Enabled bool
}

func (s Status) Header() string {
	ch := strconv.Itoa(int(s.Cursor & 0x0F))
	if len(ch) == 1 {
		ch = "0" + ch
	}
	if s.Enabled {
		return "CH" + ch + " EN"
	}
	return "CH" + ch + " DIS"
}

type Panel struct {
	display drivers.Displayer
}

func NewPanel(display drivers.Displayer) *Panel {
	return &Panel{display: display}
}

// Box returns the top-left corner of the box for channel.
func Box(channel uint8) (int16, int16) {
	ch := int16(channel & 0x0F)
	return (ch%perRow)*boxPitch + 1, boxTop + (ch/perRow)*rowPitch
}

func (p *Panel) Draw(s Status) error {
	p.clear()
	tinyfont.WriteLine(p.display, &freemono.Regular9pt7b, 1, headerBaseline, s.Header(), onColor)
	for ch := uint8(0); ch < 16; ch++ {
		x, y := Box(ch)
		p.outline(x, y)
		if s.Levels&(1<<ch) != 0 {
			p.fill(x+2, y+2, boxSize-4)
		}
		if ch == s.Cursor&0x0F {
			p.underline(x, y+boxSize+1)
		}
	}
	return p.display.Display()
}

func (p *Panel) Clear() error {
	p.clear()
	return p.display.Display()
}

func (p *Panel) clear() {
	w, h := p.display.Size()
	for x := int16(0); x < w; x++ {
		for y := int16(0); y < h; y++ {
			p.display.SetPixel(x, y, offColor)
		}
	}
}

func (p *Panel) outline(x, y int16) {
	for i := int16(0); i < boxSize; i++ {
		p.display.SetPixel(x+i, y, onColor)
		p.display.SetPixel(x+i, y+boxSize-1, onColor)
		p.display.SetPixel(x, y+i, onColor)
		p.display.SetPixel(x+boxSize-1, y+i, onColor)
	}
}

func (p *Panel) fill(x, y, size int16) {
	for dx := int16(0); dx < size; dx++ {
		for dy := int16(0); dy < size; dy++ {
			p.display.SetPixel(x+dx, y+dy, onColor)
		}
	}
}

func (p *Panel) underline(x, y int16) {
	for i := int16(0); i < boxSize; i++ {
		p.display.SetPixel(x+i, y, onColor)
		p.display.SetPixel(x+i, y+1, onColor)
	}
}
