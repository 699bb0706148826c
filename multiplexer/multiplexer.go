// Package multiplexer drives HC4067-class 16 channel analog/digital
// multiplexers: four binary select lines pick the channel connected to the
// common SIG line, and an optional active-low EN line gates the connection.
package multiplexer

import (
	"errors"

	"hc4067-ctrl/pin"
)

// Channels is the number of lines behind one HC4067.
const Channels = 16

// channelMask keeps the low 4 bits of a channel index. Larger values alias.
const channelMask = 0x0F

var (
	ErrClosed     = errors.New("multiplexer: closed")
	ErrInvalidPin = errors.New("multiplexer: invalid pin")
)

// Mux is what the rest of the module needs from a multiplexer, whether it is
// wired to local pins or reached through a remote link.
type Mux interface {
	Get(channel int) (bool, error)
	Set(channel int, state bool) error
	Enable() error
	Disable() error
	Close() error
}

// Holder is implemented by multiplexers whose SIG line keeps driving after
// Set. Readers of input channels call Release first and Resume afterwards.
type Holder interface {
	Release() error
	Resume() error
}

// Config is a pin assignment as found in configuration files.
// En is pin.NC when the enable line is tied low on the board.
type Config struct {
	S0  pin.Number `yaml:"s0"`
	S1  pin.Number `yaml:"s1"`
	S2  pin.Number `yaml:"s2"`
	S3  pin.Number `yaml:"s3"`
	Sig pin.Number `yaml:"sig"`
	En  pin.Number `yaml:"en"`
}

// DefaultConfig returns an assignment with every line unconnected.
func DefaultConfig() Config {
	return Config{S0: pin.NC, S1: pin.NC, S2: pin.NC, S3: pin.NC, Sig: pin.NC, En: pin.NC}
}

// Mask returns the channel index actually selected for channel.
func Mask(channel int) uint8 {
	return uint8(channel & channelMask)
}
